package specnorm

import (
	"testing"

	dswarm "github.com/docker/docker/api/types/swarm"
	"github.com/stretchr/testify/assert"
)

func TestConfigs(t *testing.T) {
	spec := dswarm.ServiceSpec{
		TaskTemplate: dswarm.TaskSpec{
			ContainerSpec: &dswarm.ContainerSpec{
				Image: "app:stable",
				Configs: []*dswarm.ConfigReference{
					{ConfigID: "y", ConfigName: "nginx_v2", File: &dswarm.ConfigReferenceFileTarget{Name: "/etc/nginx/nginx.conf"}},
					{ConfigID: "cred", ConfigName: "credspec", Runtime: &dswarm.ConfigReferenceRuntimeTarget{}},
					nil,
					{ConfigID: "x", ConfigName: "frontend_v2", File: &dswarm.ConfigReferenceFileTarget{Name: "/etc/app.conf"}},
				},
			},
		},
	}

	assert.Equal(t, []ConfigBinding{
		{ID: "x", Name: "frontend_v2", Target: "/etc/app.conf"},
		{ID: "y", Name: "nginx_v2", Target: "/etc/nginx/nginx.conf"},
	}, Configs(spec))
	assert.Equal(t, "app:stable", Image(spec))
}

func TestNoContainerSpec(t *testing.T) {
	assert.Nil(t, Configs(dswarm.ServiceSpec{}))
	assert.Empty(t, Image(dswarm.ServiceSpec{}))
}
