package domain

import (
	"fmt"
	"time"
)

const modelStackDir = "./src/KZ_project/dl_models/model_stack"

// AIModel describes a trained model registered for a symbol.
type AIModel struct {
	ID            string
	Symbol        string
	Source        string
	FeatureCounts int
	ModelName     string
	AIType        string
	Hashtag       string
	AccuracyScore float64
	CreatedAt     time.Time
}

// NewAIModel stamps CreatedAt with the current time on every call.
func NewAIModel(symbol, source string, featureCounts int, modelName, aiType, hashtag string, accuracy float64) AIModel {
	return AIModel{
		Symbol:        symbol,
		Source:        source,
		FeatureCounts: featureCounts,
		ModelName:     modelName,
		AIType:        aiType,
		Hashtag:       hashtag,
		AccuracyScore: accuracy,
		CreatedAt:     time.Now().UTC(),
	}
}

// FilePath is where the serialized model lives in the model stack.
func (m AIModel) FilePath() string {
	return fmt.Sprintf("%s/%s/%s", modelStackDir, m.Hashtag, m.ModelName)
}
