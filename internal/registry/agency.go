// Package registry holds the agency registry and the product-term catalog
// that drive every portal pull and classification decision. Both are
// position-sensitive: agencies are tried in priority order and product
// terms are matched first-hit-wins.
package registry

import "strings"

// Agency is a government purchasing entity we monitor on the procurement
// portal. Awards are attributed to an agency either by exact department
// code or by an uppercase substring match against its name patterns;
// the portal is inconsistent about which one it exposes per record.
type Agency struct {
	Code             string
	FullName         string
	DeptCodes        []string
	DeptNamePatterns []string
	Priority         string
	PullCadenceHours int
}

// Matches reports whether a scraped department code/name belongs to this
// agency.
func (a Agency) Matches(deptCode, deptName string) bool {
	for _, c := range a.DeptCodes {
		if c == deptCode && deptCode != "" {
			return true
		}
	}
	dn := strings.ToUpper(deptName)
	for _, p := range a.DeptNamePatterns {
		if p != "" && strings.Contains(dn, p) {
			return true
		}
	}
	return false
}

// Agencies is the default registry. Cadence reflects how quickly each
// agency's purchasing turns over, not portal limits.
var Agencies = []Agency{
	{
		Code:      "CCHCS",
		FullName:  "CA Correctional Health Care Services / CDCR",
		DeptCodes: []string{"5225", "4700"},
		DeptNamePatterns: []string{
			"CCHCS", "CORRECTIONAL HEALTH", "CDCR",
			"CA STATE PRISON", "CALIFORNIA INSTITUTION",
			"PELICAN BAY", "MULE CREEK", "KERN VALLEY",
			"SALINAS VALLEY", "FOLSOM", "SAN QUENTIN",
			"HIGH DESERT", "PLEASANT VALLEY", "IRONWOOD",
			"AVENAL", "CHUCKAWALLA", "CENTINELA",
		},
		Priority:         "P0",
		PullCadenceHours: 24,
	},
	{
		Code:      "CalVet",
		FullName:  "CA Dept of Veterans Affairs - Veterans Homes",
		DeptCodes: []string{"7700"},
		DeptNamePatterns: []string{
			"VETERANS AFFAIRS", "CALVET", "VETERANS HOME", "DVA", "VETERANS HOMES",
		},
		Priority:         "P0",
		PullCadenceHours: 48,
	},
	{
		Code:      "DSH",
		FullName:  "Dept of State Hospitals",
		DeptCodes: []string{"4440"},
		DeptNamePatterns: []string{
			"STATE HOSPITALS", "DSH", "DEPARTMENT OF STATE HOSPITAL",
			"ATASCADERO", "COALINGA", "METROPOLITAN", "NAPA",
			"PATTON", "PORTERVILLE",
		},
		Priority:         "P1",
		PullCadenceHours: 72,
	},
	{
		Code:      "CalFire",
		FullName:  "CA Dept of Forestry and Fire Protection",
		DeptCodes: []string{"3540"},
		DeptNamePatterns: []string{
			"FORESTRY", "CALFIRE", "CAL FIRE", "FIRE PROTECTION", "CDFF", "FIRE STATION",
		},
		Priority:         "P1",
		PullCadenceHours: 72,
	},
	{
		Code:      "CDPH",
		FullName:  "CA Dept of Public Health",
		DeptCodes: []string{"4260"},
		DeptNamePatterns: []string{
			"PUBLIC HEALTH", "CDPH", "DEPARTMENT OF PUBLIC HEALTH",
		},
		Priority:         "P1",
		PullCadenceHours: 72,
	},
	{
		Code:      "CalTrans",
		FullName:  "CA Dept of Transportation",
		DeptCodes: []string{"2660"},
		DeptNamePatterns: []string{
			"TRANSPORTATION", "CALTRANS", "DOT",
		},
		Priority:         "P1",
		PullCadenceHours: 168,
	},
	{
		Code:      "CHP",
		FullName:  "CA Highway Patrol",
		DeptCodes: []string{"2720"},
		DeptNamePatterns: []string{
			"HIGHWAY PATROL", "CHP",
		},
		Priority:         "P2",
		PullCadenceHours: 168,
	},
	{
		Code:      "DGS",
		FullName:  "Dept of General Services",
		DeptCodes: []string{"1760"},
		DeptNamePatterns: []string{
			"GENERAL SERVICES", "DGS",
		},
		Priority:         "P2",
		PullCadenceHours: 168,
	},
}

// FindAgency looks an agency up by code, case-insensitively.
func FindAgency(code string) (Agency, bool) {
	for _, a := range Agencies {
		if strings.EqualFold(a.Code, code) {
			return a, true
		}
	}
	return Agency{}, false
}

// AgencyForQuote resolves which registered agency a quote's free-form
// agency string refers to. Quotes are entered by hand, so "CDCR" and
// "CCHCS / CDCR" both need to land on the same registry entry.
func AgencyForQuote(quoteAgency string) (Agency, bool) {
	qa := strings.ToUpper(strings.TrimSpace(quoteAgency))
	if qa == "" {
		return Agency{}, false
	}
	for _, a := range Agencies {
		code := strings.ToUpper(a.Code)
		if strings.Contains(qa, code) || strings.Contains(code, qa) {
			return a, true
		}
		for _, p := range a.DeptNamePatterns {
			if strings.Contains(qa, p) {
				return a, true
			}
		}
	}
	return Agency{}, false
}

// PriorityRank maps P0..P2 onto a comparable integer, higher is more
// urgent. Unknown priorities sink to zero.
func PriorityRank(p string) int {
	switch strings.ToUpper(strings.TrimSpace(p)) {
	case "P0":
		return 3
	case "P1":
		return 2
	case "P2":
		return 1
	}
	return 0
}

// PriorityAtMost reports whether priority p is within the requested cap,
// i.e. a P0 term runs under a P1 request but a P2 term does not.
func PriorityAtMost(p, cap string) bool {
	if strings.EqualFold(cap, "all") {
		return true
	}
	return PriorityRank(p) >= PriorityRank(cap)
}
