package testutil

import (
	"testing"

	"github.com/junioryono/godi/v5"
	"github.com/stretchr/testify/assert"
)

// CommonFixtures provides common component registrations for testing
var CommonFixtures = struct {
	Logger   func() godi.Registration
	Database func() godi.Registration
	Cache    func() godi.Registration
	Service  func() godi.Registration
	Handler  func(name string) godi.Registration
}{
	Logger: func() godi.Registration {
		return godi.Component[TestLogger]().ImplementedBy(NewTestLogger)
	},
	Database: func() godi.Registration {
		return godi.Component[TestDatabase]().ImplementedBy(NewTestDatabase)
	},
	Cache: func() godi.Registration {
		return godi.Component[TestCache]().ImplementedBy(NewTestCache)
	},
	Service: func() godi.Registration {
		return godi.Component[*TestServiceWithDeps]().
			ImplementedBy(NewTestServiceWithDeps).
			LifestyleScoped()
	},
	Handler: func(name string) godi.Registration {
		return godi.Component[TestHandler]().
			UsingFactory(func(*godi.Kernel, *godi.CreationContext) (any, error) {
				return NewTestHandler(name), nil
			}).
			Named(name)
	},
}

// BasicRegistrations returns the logger, database and cache fixtures
func BasicRegistrations() []godi.Registration {
	return []godi.Registration{
		CommonFixtures.Logger(),
		CommonFixtures.Database(),
		CommonFixtures.Cache(),
	}
}

// CompleteRegistrations returns every common fixture including dependent ones
func CompleteRegistrations() []godi.Registration {
	return append(BasicRegistrations(), CommonFixtures.Service())
}

// TestScenario represents a test scenario configuration
type TestScenario struct {
	Name     string
	Setup    func(t *testing.T) *godi.Kernel
	Validate func(t *testing.T, k *godi.Kernel)
}

// RunTestScenarios executes a set of test scenarios
func RunTestScenarios(t *testing.T, scenarios []TestScenario) {
	t.Helper()

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			t.Parallel()

			k := scenario.Setup(t)
			scenario.Validate(t, k)
		})
	}
}

// ErrorTestCase represents a test case for error scenarios
type ErrorTestCase struct {
	Name      string
	Setup     func(t *testing.T) *godi.Kernel
	Action    func(k *godi.Kernel) error
	WantError error
	CheckErr  func(t *testing.T, err error)
}

// RunErrorTestCases executes error test cases
func RunErrorTestCases(t *testing.T, cases []ErrorTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()

			k := tc.Setup(t)
			err := tc.Action(k)

			if tc.WantError != nil {
				assert.ErrorIs(t, err, tc.WantError)
			}
			if tc.CheckErr != nil {
				tc.CheckErr(t, err)
			}
		})
	}
}
