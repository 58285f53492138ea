package domain

import (
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

func TestLadderFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeLadderScenario,
		Options: &godog.Options{
			Paths:    []string{"./features"},
			Format:   "pretty",
			Output:   os.Stdout,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

type ladderState struct {
	source ProbeResult
	plan   RenditionPlan
}

// InitializeLadderScenario 註冊 ladder feature 的 step
func InitializeLadderScenario(s *godog.ScenarioContext) {
	st := &ladderState{}

	s.Step(`^a source video of (\d+)x(\d+) at (\d+) bps$`, func(w, h int, bitrate int64) error {
		st.source = ProbeResult{Resolution: Resolution{Width: w, Height: h}, Bitrate: bitrate}
		return nil
	})
	s.Step(`^the rendition is planned$`, func() error {
		st.plan = Plan(st.source)
		return nil
	})
	s.Step(`^the tier should be "([^"]*)"$`, func(name string) error {
		if st.plan.Tier.Name != name {
			return fmt.Errorf("expected tier %s, but got %s", name, st.plan.Tier.Name)
		}
		return nil
	})
	s.Step(`^the output size should be "([^"]*)"$`, func(size string) error {
		if st.plan.Size() != size {
			return fmt.Errorf("expected size %s, but got %s", size, st.plan.Size())
		}
		return nil
	})
	s.Step(`^the bitrate should be (\d+)$`, func(bitrate int64) error {
		if st.plan.Bitrate != bitrate {
			return fmt.Errorf("expected bitrate %d, but got %d", bitrate, st.plan.Bitrate)
		}
		return nil
	})
}
