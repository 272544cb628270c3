// Package merger recombines the per-window results of a split consolidation
// into one continuous plan per EASC and one anytime trace.
package merger
