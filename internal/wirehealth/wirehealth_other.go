//go:build !linux

package wirehealth

// New builds the platform Sampler. Non-Linux platforms have no wired
// TCP_INFO equivalent, so wire-health logging degrades to Available:
// false rather than failing the connection.
func New() Sampler { return noopSampler{} }
