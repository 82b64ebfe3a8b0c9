package service

import (
	"strings"

	"hrquery-go/internal/model"
)

// maxConfidence 是非 general 分类的置信度上限。
const maxConfidence = 0.9

// generalConfidence 是兜底分类的固定置信度。
const generalConfidence = 0.5

// ClassifyQuery 对一条自然语言查询做确定性分类。
// 纯函数：不看 schema，不访问网络，相同输入永远产出相同结果。
func ClassifyQuery(query string) model.QueryClassification {
	queryLower := strings.ToLower(query)

	sqlScore := countIndicators(queryLower, sqlIndicators)
	docScore := countIndicators(queryLower, documentIndicators)
	hybridScore := countIndicators(queryLower, hybridIndicators)

	// 决策优先级固定：hybrid > sql > document > general
	var queryType model.QueryType
	switch {
	case hybridScore > 0 || (sqlScore > 0 && docScore > 0):
		queryType = model.QueryHybrid
	case sqlScore > docScore:
		queryType = model.QuerySQL
	case docScore > 0:
		queryType = model.QueryDocument
	default:
		queryType = model.QueryGeneral
	}

	confidence := generalConfidence
	if queryType != model.QueryGeneral {
		combined := float64(sqlScore + docScore + hybridScore)
		confidence = combined * 0.2
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
	}

	return model.QueryClassification{
		Type:        queryType,
		Confidence:  confidence,
		SQLScore:    sqlScore,
		DocScore:    docScore,
		HybridScore: hybridScore,
	}
}

func countIndicators(query string, indicators []string) int {
	score := 0
	for _, indicator := range indicators {
		if strings.Contains(query, indicator) {
			score++
		}
	}
	return score
}
