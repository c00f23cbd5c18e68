package kinds

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"cardforge/internal/engine"
)

// Kind описывает один вид генерации (текстовый статблок, арт карты и т.д.):
// эндпоинт, оценку длительности для симуляции прогресса и вехи.
type Kind struct {
	Name              string
	Endpoint          string
	EstimatedDuration time.Duration
	Timeout           time.Duration
	Color             string
	Milestones        []engine.Milestone
	Tutorial          *engine.TutorialConfig
}

// ControllerConfig builds the engine configuration for this kind. baseURL is
// joined with the kind's endpoint path; tutorial switches every controller to
// the simulated transport.
func (k Kind) ControllerConfig(baseURL string, client *http.Client, tutorial bool) engine.Config {
	cfg := engine.Config{
		Endpoint: joinURL(baseURL, k.Endpoint),
		Timeout:  k.Timeout,
		Client:   client,
		Progress: engine.ProgressConfig{
			EstimatedDuration: k.EstimatedDuration,
			Milestones:        k.Milestones,
			Color:             k.Color,
		},
	}
	if tutorial {
		t := k.Tutorial
		if t == nil {
			t = &engine.TutorialConfig{}
		}
		cfg.Tutorial = t
	}
	return cfg
}

func joinURL(base, path string) string {
	u, err := url.JoinPath(base, path)
	if err != nil {
		return base + path
	}
	return u
}

// Registry is the immutable set of configured generation kinds.
type Registry struct {
	kinds map[string]Kind
}

func (r *Registry) Get(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	return names
}

// HCL-схема файла kinds.hcl
type registryFile struct {
	Kinds []kindBlock `hcl:"kind,block"`
}

type kindBlock struct {
	Name              string           `hcl:"name,label"`
	Endpoint          string           `hcl:"endpoint"`
	EstimatedDuration string           `hcl:"estimated_duration,optional"`
	Timeout           string           `hcl:"timeout,optional"`
	Color             string           `hcl:"color,optional"`
	Milestones        []milestoneBlock `hcl:"milestone,block"`
	Tutorial          *tutorialBlock   `hcl:"tutorial,block"`
}

type milestoneBlock struct {
	At      float64 `hcl:"at"`
	Message string  `hcl:"message"`
}

type tutorialBlock struct {
	SimulatedDuration string `hcl:"simulated_duration,optional"`
	MockData          string `hcl:"mock_data,optional"`
}

// Load reads a kind registry from an HCL file.
func Load(path string) (*Registry, error) {
	var file registryFile
	if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
		return nil, fmt.Errorf("decode kinds file %s: %w", path, err)
	}
	if len(file.Kinds) == 0 {
		return nil, fmt.Errorf("kinds file %s declares no kinds", path)
	}

	reg := &Registry{kinds: make(map[string]Kind, len(file.Kinds))}
	for _, block := range file.Kinds {
		if _, dup := reg.kinds[block.Name]; dup {
			return nil, fmt.Errorf("duplicate kind %q", block.Name)
		}
		kind, err := block.resolve()
		if err != nil {
			return nil, fmt.Errorf("kind %q: %w", block.Name, err)
		}
		reg.kinds[block.Name] = kind
	}
	return reg, nil
}

func (b kindBlock) resolve() (Kind, error) {
	kind := Kind{
		Name:              b.Name,
		Endpoint:          b.Endpoint,
		EstimatedDuration: 10 * time.Second,
		Color:             b.Color,
	}
	if b.Endpoint == "" {
		return Kind{}, fmt.Errorf("endpoint is required")
	}
	if b.EstimatedDuration != "" {
		d, err := time.ParseDuration(b.EstimatedDuration)
		if err != nil {
			return Kind{}, fmt.Errorf("estimated_duration: %w", err)
		}
		kind.EstimatedDuration = d
	}
	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil {
			return Kind{}, fmt.Errorf("timeout: %w", err)
		}
		kind.Timeout = d
	}

	prev := -1.0
	for _, m := range b.Milestones {
		if m.At < 0 || m.At > 100 {
			return Kind{}, fmt.Errorf("milestone at %v out of range [0,100]", m.At)
		}
		if m.At <= prev {
			return Kind{}, fmt.Errorf("milestone thresholds must be strictly increasing, got %v after %v", m.At, prev)
		}
		prev = m.At
		kind.Milestones = append(kind.Milestones, engine.Milestone{At: m.At, Message: m.Message})
	}

	if b.Tutorial != nil {
		tut := &engine.TutorialConfig{}
		if b.Tutorial.SimulatedDuration != "" {
			d, err := time.ParseDuration(b.Tutorial.SimulatedDuration)
			if err != nil {
				return Kind{}, fmt.Errorf("tutorial.simulated_duration: %w", err)
			}
			tut.SimulatedDuration = d
		}
		if b.Tutorial.MockData != "" {
			if !json.Valid([]byte(b.Tutorial.MockData)) {
				return Kind{}, fmt.Errorf("tutorial.mock_data is not valid JSON")
			}
			tut.MockData = json.RawMessage(b.Tutorial.MockData)
		}
		kind.Tutorial = tut
	}

	return kind, nil
}

// Defaults returns the built-in card kinds used when no kinds file is
// configured.
func Defaults() *Registry {
	return &Registry{kinds: map[string]Kind{
		"statblock": {
			Name:              "statblock",
			Endpoint:          "/generate/statblock",
			EstimatedDuration: 8 * time.Second,
			Color:             "#7c5cff",
			Milestones: []engine.Milestone{
				{At: 0, Message: "Summoning the creature..."},
				{At: 40, Message: "Rolling stats..."},
				{At: 75, Message: "Balancing abilities..."},
				{At: 92, Message: "Finishing touches..."},
			},
			Tutorial: &engine.TutorialConfig{
				SimulatedDuration: 7 * time.Second,
				MockData:          json.RawMessage(`{"statblock":{"name":"Practice Dummy","challenge":"1/8"}}`),
			},
		},
		"artwork": {
			Name:              "artwork",
			Endpoint:          "/generate/artwork",
			EstimatedDuration: 20 * time.Second,
			Color:             "#ff8c42",
			Milestones: []engine.Milestone{
				{At: 0, Message: "Sketching composition..."},
				{At: 50, Message: "Inking details..."},
				{At: 90, Message: "Applying colors..."},
			},
			Tutorial: &engine.TutorialConfig{
				SimulatedDuration: 7 * time.Second,
				MockData:          json.RawMessage(`{"image_url":"/tutorial/practice-dummy.png"}`),
			},
		},
	}}
}
