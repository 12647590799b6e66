package conformance

import "testing"

func TestConformance(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("loading conformance suites: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("no conformance tests found")
	}

	for _, lt := range tests {
		lt := lt
		t.Run(lt.Suite.Name+"/"+lt.Test.Name, func(t *testing.T) {
			result, err := Run(lt.Test)
			if err != nil {
				t.Fatalf("pipeline error: %v", err)
			}
			if msg := Check(lt.Test, result); msg != "" {
				t.Error(msg)
			}
		})
	}
}

func TestDeterministicOutput(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("loading conformance suites: %v", err)
	}

	for _, lt := range tests {
		if lt.Test.Expect.Diagnostic != "" {
			continue
		}
		first, err := Run(lt.Test)
		if err != nil {
			t.Fatalf("%s: %v", lt.Test.Name, err)
		}
		second, err := Run(lt.Test)
		if err != nil {
			t.Fatalf("%s: %v", lt.Test.Name, err)
		}
		if first.Output != second.Output {
			t.Errorf("%s: two runs disagree: %q vs %q", lt.Test.Name, first.Output, second.Output)
		}
	}
}
