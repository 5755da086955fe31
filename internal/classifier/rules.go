package classifier

import (
	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// ruleConfidence is the probability the rule classifier assigns to its pick.
const ruleConfidence = 0.7

// Rules is a threshold classifier used when no trained model is available.
// Its class indices are category codes, so pair it with IdentityEncoder.
type Rules struct{}

// Predict picks the first matching rule, most severe first.
func (Rules) Predict(x [model.FeatureCount]float64) (int, []float64, error) {
	c := classify(x)

	probs := make([]float64, model.CategoryCount)
	rest := (1 - ruleConfidence) / float64(model.CategoryCount-1)
	for i := range probs {
		probs[i] = rest
	}
	probs[c.Code()] = ruleConfidence
	return c.Code(), probs, nil
}

func classify(x [model.FeatureCount]float64) model.Category {
	cpu, ram, level, temp := x[0], x[1], x[3], x[4]
	errs := x[5] + x[6]
	sectors := x[7]

	switch {
	case sectors >= 50:
		return model.CategoryDiskEndOfLife
	case sectors >= 10 || errs >= 20:
		return model.CategoryBadSectors
	case temp >= 80:
		return model.CategoryHighTemperature
	case cpu >= 95:
		return model.CategoryCPUOverload
	case ram >= 95:
		return model.CategoryRAMPressure
	case level >= 2:
		return model.CategorySystemErrors
	case level >= 1:
		return model.CategorySystemWarnings
	default:
		return model.CategoryNormal
	}
}
