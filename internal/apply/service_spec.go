package apply

import (
	dswarm "github.com/docker/docker/api/types/swarm"
)

// cloneSpec copies the parts of spec that the mutations below touch, so the
// caller's service value is never modified.
func cloneSpec(spec dswarm.ServiceSpec) dswarm.ServiceSpec {
	out := spec
	if spec.TaskTemplate.ContainerSpec != nil {
		cs := *spec.TaskTemplate.ContainerSpec
		cs.Configs = append([]*dswarm.ConfigReference(nil), cs.Configs...)
		out.TaskTemplate.ContainerSpec = &cs
	} else {
		out.TaskTemplate.ContainerSpec = &dswarm.ContainerSpec{}
	}
	return out
}

// withConfigChange detaches change.Remove and attaches the new config with the
// same file defaults the docker CLI uses.
func withConfigChange(spec dswarm.ServiceSpec, change ConfigChange) dswarm.ServiceSpec {
	out := cloneSpec(spec)
	cs := out.TaskTemplate.ContainerSpec
	refs := make([]*dswarm.ConfigReference, 0, len(cs.Configs)+1)
	for _, ref := range cs.Configs {
		if change.Remove != "" && ref != nil && ref.ConfigName == change.Remove {
			continue
		}
		refs = append(refs, ref)
	}
	refs = append(refs, &dswarm.ConfigReference{
		ConfigID:   change.ConfigID,
		ConfigName: change.ConfigName,
		File: &dswarm.ConfigReferenceFileTarget{
			Name: change.Target,
			UID:  "0",
			GID:  "0",
			Mode: 0o444,
		},
	})
	cs.Configs = refs
	return out
}

func withImage(spec dswarm.ServiceSpec, ref string) dswarm.ServiceSpec {
	out := cloneSpec(spec)
	out.TaskTemplate.ContainerSpec.Image = ref
	return out
}
