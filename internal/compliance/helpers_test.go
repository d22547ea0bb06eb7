package compliance

import (
	"github.com/chrissnell/daylight/internal/insolation"
	"github.com/chrissnell/daylight/internal/keo"
)

func passingInsolation() *insolation.Result {
	return &insolation.Result{WindowID: "w", MeetsRequirement: true}
}

func passingKEO() *keo.Result {
	return &keo.Result{WindowID: "w", Total: 2, MeetsRequirement: true}
}
