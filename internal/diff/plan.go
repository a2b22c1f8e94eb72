package diff

import (
	"strings"

	"github.com/cmmoran/swarmup/internal/labels"
	"github.com/cmmoran/swarmup/internal/resolve"
	"github.com/cmmoran/swarmup/internal/specnorm"
)

type Action string

const (
	ActionNone   Action = "none"
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
)

// Resolution is the decided action for one desired config binding.
type Resolution struct {
	Action     Action `json:"action"`
	ConfigID   string `json:"configId"`
	ConfigName string `json:"configName"`
	ConfigPath string `json:"configPath"`
	// Remove names the attached config to detach; empty for add and none.
	Remove string `json:"remove,omitempty"`
}

// Classify compares the resolved config for desired against what the service
// has attached. Attached configs belong to the binding when their name starts
// with the binding prefix. A candidate with the resolved id at the desired path
// means nothing to do; otherwise the candidate with the greatest name is
// replaced.
func Classify(desired labels.ConfigBinding, resolved resolve.ConfigObject, observed []specnorm.ConfigBinding) Resolution {
	res := Resolution{
		Action:     ActionAdd,
		ConfigID:   resolved.ID,
		ConfigName: resolved.Name,
		ConfigPath: desired.Target,
	}
	var current *specnorm.ConfigBinding
	for i := range observed {
		o := &observed[i]
		if !strings.HasPrefix(o.Name, desired.Prefix) {
			continue
		}
		if o.ID == resolved.ID && o.Target == desired.Target {
			res.Action = ActionNone
			return res
		}
		if current == nil || o.Name > current.Name {
			current = o
		}
	}
	if current != nil {
		res.Action = ActionUpdate
		res.Remove = current.Name
	}
	return res
}
