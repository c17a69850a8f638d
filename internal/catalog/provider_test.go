package catalog

import "testing"

func TestKnownProvidersAreKnownAndStable(t *testing.T) {
	providers := KnownProviders()
	if len(providers) == 0 {
		t.Fatal("expected at least one provider")
	}

	seen := make(map[Provider]struct{}, len(providers))
	for _, p := range providers {
		if !p.Known() {
			t.Fatalf("listed provider %q is not in the closed set", p)
		}
		if _, dup := seen[p]; dup {
			t.Fatalf("provider %q listed twice", p)
		}
		seen[p] = struct{}{}
	}
	if ProviderUnknown.Known() {
		t.Fatal("unknown must stay outside the closed set")
	}
}

func TestParseProviderNormalizes(t *testing.T) {
	if got := ParseProvider("  OpenAI "); got != ProviderOpenAI {
		t.Fatalf("expected openai, got %q", got)
	}
	if got := ParseProvider("definitely-not-real"); got != ProviderUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}
