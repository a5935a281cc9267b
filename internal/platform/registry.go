package platform

// Registry maps platform discriminants to their adapters. It is built once
// at startup and injected wherever dispatch is needed, so tests can swap in
// fakes without touching process-wide state.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

// Get returns the adapter for platform, or an unknown-platform error when
// nothing is registered for it.
func (r *Registry) Get(platform string) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, &PublishError{
			Kind:     KindUnknownPlatform,
			Platform: platform,
			Reason:   "no adapter registered",
		}
	}
	return p, nil
}

func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		platforms = append(platforms, name)
	}
	return platforms
}
