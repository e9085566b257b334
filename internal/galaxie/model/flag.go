package model

import "fmt"

// Flag is the race-control flag shown for a live run.
type Flag struct {
	Code  int64  `json:"code"`
	Label string `json:"label"`
}

// CautionFlagCode is the upstream code of a yellow flag period.
const CautionFlagCode = 2

var flagLabels = map[int64]string{
	1: "Green",
	2: "Yellow",
	3: "Red",
	4: "Checkered",
	8: "Pre Race",
	9: "Checkered Flag",
}

// FlagFromCode maps an upstream flag code. Unmapped codes keep the code in
// the label as "Unknown (<code>)".
func FlagFromCode(code int64) Flag {
	if label, ok := flagLabels[code]; ok {
		return Flag{Code: code, Label: label}
	}
	return Flag{Code: code, Label: fmt.Sprintf("Unknown (%d)", code)}
}
