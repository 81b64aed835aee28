// Package scale resolves a per-category multiplicative size factor used to
// bring cut-out objects to a realistic size relative to the scene.
package scale
