package scanner

import "github.com/jonesrussell/torcrawl/internal/domain"

// Port profiles. Hidden services overwhelmingly run web stacks, so the quick
// profile stays web-heavy; standard adds the common daemon ports and full
// sweeps the long tail seen on onion hosts (bitcoin, monero, IRC, proxies).
var (
	quickPorts = []int{21, 22, 80, 443, 8080, 8443}

	standardPorts = []int{
		21, 22, 23, 25, 80, 110, 143, 443,
		3306, 5432, 5900, 6379, 8000, 8080, 8443, 9000,
	}

	fullPorts = []int{
		21, 22, 23, 25, 53, 80, 110, 143, 443, 465, 587, 993, 995,
		1080, 3000, 3128, 3306, 3389, 5000, 5432, 5900, 6379, 6667, 6697,
		8000, 8080, 8081, 8333, 8443, 8888, 9000, 9050, 9090, 9150,
		11211, 18080, 18081, 27017,
	}
)

// PortsForProfile returns the port list for a profile name. Unknown names
// fall back to the standard profile.
func PortsForProfile(profile string) []int {
	switch profile {
	case domain.ProfileQuick:
		return quickPorts
	case domain.ProfileFull:
		return fullPorts
	default:
		return standardPorts
	}
}
