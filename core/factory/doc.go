// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation. Reducers, search engines, metrics sinks and plan
// stores are all built this way.
//
// Example usage:
//
//	reg := factory.NewRegistry[splitter.Reducer]()
//	reg.Register("proportional", func(conf map[string]any) (splitter.Reducer, error) {
//	    var c struct{ Factor float64 `json:"factor"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return splitter.Proportional{Factor: c.Factor}, nil
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "proportional", Conf: map[string]any{"factor": 0.1}})
package factory
