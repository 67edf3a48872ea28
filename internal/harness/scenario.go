package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/fakecart"
)

// Scenario is a scripted cart session run against the fake service.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Session is "authenticated" (default) or "anonymous".
	Session string `yaml:"session,omitempty"`

	// CurrentPath is the location saved on a login redirect. Defaults to "/".
	CurrentPath string `yaml:"current_path,omitempty"`

	// Catalog lists the products the fake service knows.
	Catalog []fakecart.CatalogEntry `yaml:"catalog"`

	// Seed is the server-side cart before the first step.
	Seed []fakecart.SeedEntry `yaml:"seed,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Expect is checked against the final snapshot.
	Expect *FinalExpect `yaml:"expect,omitempty"`

	// Assertions validate the journal trace and the requests the service saw.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one user action or service manipulation.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	ProductID int64 `yaml:"product_id,omitempty"`
	Quantity  int   `yaml:"quantity,omitempty"`

	// Confirm answers the removal prompt. Defaults to true.
	Confirm *bool `yaml:"confirm,omitempty"`

	// Status is the HTTP status injected by fail_next.
	Status int `yaml:"status,omitempty"`

	// Expect is checked against the step's outcome.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect is a subset match on one outcome. Unset fields are not checked.
type StepExpect struct {
	// Outcome is an outcome kind, or "unknown_item" for a local refusal.
	Outcome      string `yaml:"outcome"`
	Message      string `yaml:"message,omitempty"`
	Count        *int   `yaml:"count,omitempty"`
	Total        string `yaml:"total,omitempty"`
	SentQuantity *int   `yaml:"sent_quantity,omitempty"`
	Empty        *bool  `yaml:"empty,omitempty"`
}

// FinalExpect is a subset match on the final snapshot.
type FinalExpect struct {
	Count *int       `yaml:"count,omitempty"`
	Total string     `yaml:"total,omitempty"`
	Items []ItemLine `yaml:"items,omitempty"`
	Empty *bool      `yaml:"empty,omitempty"`

	// Redirect is the last saved login return target; "" means none.
	Redirect *string `yaml:"redirect,omitempty"`
}

// ItemLine is an expected row, in snapshot order.
type ItemLine struct {
	ProductID int64 `yaml:"product_id"`
	Quantity  int   `yaml:"quantity"`
}

// Step ops.
const (
	OpRefresh     = "refresh"
	OpOpen        = "open"
	OpAdd         = "add"
	OpSetQuantity = "set_quantity"
	OpIncrement   = "increment"
	OpDecrement   = "decrement"
	OpRemove      = "remove"
	OpFailNext    = "fail_next"
	OpLogout      = "logout"
)

// Session kinds.
const (
	SessionAuthenticated = "authenticated"
	SessionAnonymous     = "anonymous"
)

// OutcomeUnknownItem is the expected outcome for a row-scoped step on a
// product that is not in the snapshot.
const OutcomeUnknownItem = "unknown_item"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := checkSchema(path, data); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Session {
	case "", SessionAuthenticated, SessionAnonymous:
	default:
		return fmt.Errorf("session must be %q or %q, got %q", SessionAuthenticated, SessionAnonymous, s.Session)
	}

	if _, err := fakecart.Products(s.Catalog); err != nil {
		return err
	}

	if s.Session == SessionAnonymous && len(s.Seed) > 0 {
		return fmt.Errorf("seed requires an authenticated session")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	if s.Expect != nil && s.Expect.Total != "" {
		if _, err := decimal.NewFromString(s.Expect.Total); err != nil {
			return fmt.Errorf("expect.total: %w", err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(i int, step Step) error {
	switch step.Op {
	case OpRefresh, OpOpen:
	case OpLogout:
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: logout takes no expect clause", i)
		}
	case OpAdd, OpSetQuantity, OpIncrement, OpDecrement, OpRemove:
		if step.ProductID == 0 {
			return fmt.Errorf("steps[%d]: product_id is required for %s", i, step.Op)
		}
	case OpFailNext:
		if step.Status < 400 || step.Status > 599 {
			return fmt.Errorf("steps[%d]: fail_next needs an error status, got %d", i, step.Status)
		}
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: fail_next takes no expect clause", i)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.Confirm != nil && step.Op != OpRemove {
		return fmt.Errorf("steps[%d]: confirm only applies to remove", i)
	}

	if step.Expect != nil {
		if step.Expect.Outcome == "" {
			return fmt.Errorf("steps[%d].expect: outcome is required", i)
		}
		if step.Expect.Total != "" {
			if _, err := decimal.NewFromString(step.Expect.Total); err != nil {
				return fmt.Errorf("steps[%d].expect.total: %w", i, err)
			}
		}
	}
	return nil
}
