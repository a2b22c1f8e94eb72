package labels

import (
	"sort"
	"strings"
)

// ConfigBinding asks for the newest config named Prefix* to be mounted at Target.
type ConfigBinding struct {
	Prefix string `json:"prefix"`
	Target string `json:"target"`
}

// Intent is what a service's labels declare.
type Intent struct {
	TracksImage bool            `json:"tracksImage"`
	Configs     []ConfigBinding `json:"configs,omitempty"`
}

// Tracked reports whether the service opted into anything at all.
func (i Intent) Tracked() bool {
	return i.TracksImage || len(i.Configs) > 0
}

// Parse reads image and config tracking intent from a service label set.
// Config label keys are "<configPrefix>.<name prefix>" and their value is the
// mount path, passed through unchanged.
func Parse(lbls map[string]string, imagePrefix, configPrefix string) Intent {
	var in Intent
	cfgKey := configPrefix + "."
	for k, v := range lbls {
		if strings.HasPrefix(k, imagePrefix) {
			in.TracksImage = true
		}
		if strings.HasPrefix(k, cfgKey) {
			in.Configs = append(in.Configs, ConfigBinding{
				Prefix: strings.TrimPrefix(k, cfgKey),
				Target: v,
			})
		}
	}
	sort.Slice(in.Configs, func(i, j int) bool { return in.Configs[i].Prefix < in.Configs[j].Prefix })
	return in
}
