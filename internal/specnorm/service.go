package specnorm

// Order-independent projections of a live service spec.
//
// The Engine returns config references in whatever order they were attached;
// everything downstream wants them sorted so decisions do not depend on it.

import (
	"sort"

	dswarm "github.com/docker/docker/api/types/swarm"
)

// ConfigBinding is one config currently attached to a service's task template.
type ConfigBinding struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Target string `json:"target"`
}

// Configs returns the attached file-mounted configs sorted by name then id.
// Runtime-target configs (credential specs) have no mount path and are skipped.
func Configs(spec dswarm.ServiceSpec) []ConfigBinding {
	cs := spec.TaskTemplate.ContainerSpec
	if cs == nil {
		return nil
	}
	out := make([]ConfigBinding, 0, len(cs.Configs))
	for _, ref := range cs.Configs {
		if ref == nil || ref.File == nil {
			continue
		}
		out = append(out, ConfigBinding{
			ID:     ref.ConfigID,
			Name:   ref.ConfigName,
			Target: ref.File.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Image returns the container image reference, or "" when the service has no
// container spec.
func Image(spec dswarm.ServiceSpec) string {
	if spec.TaskTemplate.ContainerSpec == nil {
		return ""
	}
	return spec.TaskTemplate.ContainerSpec.Image
}
