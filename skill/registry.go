package skill

import (
	"context"
	"net/http"
	"sort"

	"github.com/BaSui01/skillstream/types"
)

// Skill is one installed capability. Invoke returns a lazy, finite
// sequence of execution events; the capability must close the channel
// when the sequence ends and must not emit on the config's Emitter
// after closing it.
type Skill interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input *types.SkillInput, cfg *InvokeConfig) (<-chan types.ExecutionEvent, error)
}

// InvokeConfig carries everything the engine prepared for one
// invocation: the owner, the resolved context, prior results for chat
// continuity, and the side-channel emitter.
type InvokeConfig struct {
	User      *types.User
	Meta      types.SkillMeta
	ModelName string
	Context   types.SkillContext
	History   []*types.ActionResult
	Config    map[string]any
	Emitter   *Emitter
}

// Inventory is the immutable name-keyed skill lookup table built at
// startup.
type Inventory struct {
	skills      map[string]Skill
	defaultName string
}

// NewInventory builds an inventory. The default skill handles requests
// that name no skill; it must be among the given skills.
func NewInventory(defaultName string, skills ...Skill) *Inventory {
	inv := &Inventory{
		skills:      make(map[string]Skill, len(skills)),
		defaultName: defaultName,
	}
	for _, s := range skills {
		inv.skills[s.Name()] = s
		if inv.defaultName == "" {
			inv.defaultName = s.Name()
		}
	}
	return inv
}

// Get returns the skill for a name; an empty name selects the default
// routing skill.
func (inv *Inventory) Get(name string) (Skill, error) {
	if name == "" {
		name = inv.defaultName
	}
	s, ok := inv.skills[name]
	if !ok {
		return nil, types.NewError(types.ErrSkillNotFound, "skill not found: "+name).
			WithHTTPStatus(http.StatusNotFound)
	}
	return s, nil
}

// List returns metadata for every installed skill, sorted by name.
func (inv *Inventory) List() []types.SkillMeta {
	out := make([]types.SkillMeta, 0, len(inv.skills))
	for _, s := range inv.skills {
		out = append(out, types.SkillMeta{Name: s.Name(), Description: s.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
