package ffb

import (
	"fmt"
	"log/slog"

	"github.com/wheelworks/ffbctl/internal/wheel"
)

// Registry owns the mapping from effect name to its hardware-resident
// handle, plus the insertion-ordered name list used for navigation.
// The list and map are always consistent: every listed name has a
// handle and no handle is unreferenced.
type Registry struct {
	log     *slog.Logger
	names   []string
	effects map[string]wheel.Effect
	descs   map[string]wheel.Descriptor
}

// BuildAll materializes the catalog through the session. A creation
// failure excludes that one effect and is logged; the build only fails
// outright when nothing at all could be created, so one bad catalog
// entry never refuses the whole session.
func BuildAll(s *Session, catalog []wheel.Descriptor, log *slog.Logger) (*Registry, error) {
	r := &Registry{
		log:     log,
		effects: make(map[string]wheel.Effect, len(catalog)),
		descs:   make(map[string]wheel.Descriptor, len(catalog)),
	}
	for _, d := range catalog {
		if _, dup := r.effects[d.Name]; dup {
			log.Warn("duplicate effect name in catalog, skipping", slog.String("effect", d.Name))
			continue
		}
		eff, err := s.CreateEffect(d)
		if err != nil {
			log.Warn("effect creation failed, excluding from registry",
				slog.String("effect", d.Name),
				slog.String("kind", d.Kind.String()),
				slog.Any("error", err))
			continue
		}
		r.names = append(r.names, d.Name)
		r.effects[d.Name] = eff
		r.descs[d.Name] = d
	}
	if len(r.names) == 0 {
		return nil, fmt.Errorf("%w: none of %d catalog entries could be created", ErrNoEffects, len(catalog))
	}
	log.Info("effect registry built",
		slog.Int("effects", len(r.names)),
		slog.Int("catalog", len(catalog)))
	return r, nil
}

// Count returns the number of usable effects.
func (r *Registry) Count() int { return len(r.names) }

// NameAt returns the effect name at the navigation index.
func (r *Registry) NameAt(i int) string { return r.names[i] }

// Names returns a copy of the ordered name list.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Lookup returns the handle for a name.
func (r *Registry) Lookup(name string) (wheel.Effect, bool) {
	eff, ok := r.effects[name]
	return eff, ok
}

// EffectAt returns the handle at the navigation index.
func (r *Registry) EffectAt(i int) wheel.Effect { return r.effects[r.names[i]] }

// DescriptorAt returns the descriptor at the navigation index.
func (r *Registry) DescriptorAt(i int) wheel.Descriptor { return r.descs[r.names[i]] }

// StopAll best-effort stops every handle. Individual failures are
// logged and never propagate: the point is to leave nothing playing.
func (r *Registry) StopAll() {
	for _, name := range r.names {
		if err := r.effects[name].Stop(); err != nil {
			r.log.Warn("effect stop failed", slog.String("effect", name), slog.Any("error", err))
		}
	}
}

// DestroyAll stops and destroys every handle, tolerating individual
// failures, then empties the registry. Safe to call on an already
// empty registry.
func (r *Registry) DestroyAll() {
	for _, name := range r.names {
		eff := r.effects[name]
		if err := eff.Stop(); err != nil {
			r.log.Debug("stop before destroy failed", slog.String("effect", name), slog.Any("error", err))
		}
		if err := eff.Destroy(); err != nil {
			r.log.Warn("effect destroy failed", slog.String("effect", name), slog.Any("error", err))
		}
	}
	r.names = nil
	r.effects = make(map[string]wheel.Effect)
	r.descs = make(map[string]wheel.Descriptor)
}
