// pkg/health/health.go
package health

import (
	"errors"
	"fmt"
	"time"

	"github.com/aleka07/twinsync/pkg/model"
)

// Service is the component name of the twin service itself. Its status is
// the outcome of the health probe.
const Service = "ditto"

var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrDuplicate         = errors.New("duplicate component")
	ErrNoDependency      = errors.New("component has no dependency")
)

// Component is an auxiliary status derived from the service health.
// Static is reported while DependsOn is healthy; otherwise the component is DOWN.
type Component struct {
	Name      string
	Static    model.Status
	DependsOn string
}

// DefaultComponents is the set the dashboard reports.
func DefaultComponents() []Component {
	return []Component{
		{Name: "api", Static: model.StatusUp, DependsOn: Service},
		{Name: "sensor", Static: model.StatusRunning, DependsOn: Service},
		{Name: "database", Static: model.StatusUp, DependsOn: Service},
	}
}

// Aggregator computes per-component statuses for one tick. It holds no
// state between calls.
type Aggregator struct {
	order []Component // dependencies before dependents
}

// NewAggregator validates the declarations. Every component must name a
// dependency, the chain must end at Service and must not loop.
func NewAggregator(components []Component) (*Aggregator, error) {
	byName := make(map[string]Component, len(components))
	for _, c := range components {
		if c.Name == Service {
			return nil, fmt.Errorf("%w: %q is reserved", ErrDuplicate, c.Name)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, c.Name)
		}
		if c.DependsOn == "" {
			return nil, fmt.Errorf("%w: %q", ErrNoDependency, c.Name)
		}
		byName[c.Name] = c
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(components))
	order := make([]Component, 0, len(components))

	var visit func(name string) error
	visit = func(name string) error {
		if name == Service {
			return nil
		}
		c, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownDependency, name)
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: through %q", ErrCyclicDependency, name)
		}
		state[name] = visiting
		if err := visit(c.DependsOn); err != nil {
			return err
		}
		state[name] = done
		order = append(order, c)
		return nil
	}

	// Walk in declaration order so the result is deterministic.
	for _, c := range components {
		if err := visit(c.Name); err != nil {
			return nil, err
		}
	}
	return &Aggregator{order: order}, nil
}

// Aggregate derives the health of every component from this tick's probe.
func (a *Aggregator) Aggregate(serviceUp bool, at time.Time) model.HealthSnapshot {
	statuses := make(map[string]model.Status, len(a.order)+1)
	statuses[Service] = model.StatusDown
	if serviceUp {
		statuses[Service] = model.StatusUp
	}
	for _, c := range a.order {
		if statuses[c.DependsOn] == model.StatusDown {
			statuses[c.Name] = model.StatusDown
			continue
		}
		statuses[c.Name] = c.Static
	}
	return model.HealthSnapshot{ServiceUp: serviceUp, Statuses: statuses, ObservedAt: at}
}
