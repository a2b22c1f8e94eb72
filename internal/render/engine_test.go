package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const digest = "sha256:1111111111111111111111111111111111111111111111111111111111111111"

func TestImageRef(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		data ImageData
		want string
	}{
		{
			name: "default",
			data: ImageData{Repository: "registry.example.com/app", Tag: "stable", Digest: digest},
			want: "registry.example.com/app:stable",
		},
		{
			name: "default pinned",
			data: ImageData{Repository: "registry.example.com/app", Tag: "stable", Digest: digest, Pin: true},
			want: "registry.example.com/app:stable@" + digest,
		},
		{
			name: "sprig mirror rewrite",
			tpl:  `{{ .Repository | replace "registry.example.com" "mirror.local" }}:{{ .Tag | upper }}`,
			data: ImageData{Repository: "registry.example.com/app", Tag: "stable"},
			want: "mirror.local/app:STABLE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEngine(Options{ImageTemplate: tt.tpl}).ImageRef(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, NewEngine(Options{}).Check())
	assert.Error(t, NewEngine(Options{ImageTemplate: "{{ .Repository"}).Check())
	assert.Error(t, NewEngine(Options{ImageTemplate: "{{ .Nope }}"}).Check())
}
