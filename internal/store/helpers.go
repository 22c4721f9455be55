package store

import (
	"math"
)

// normEpsilon はゼロベクトル除算を避けるために分母に加える微小値
const normEpsilon = 1e-12

// Normalize はベクトルをL2正規化した新しいスライスを返す
// 分母に微小値を加えるため、ゼロベクトルでも安全（結果はほぼゼロベクトルのまま）
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// CosineSimilarity はコサイン類似度を計算する（-1〜1、1が最も類似）
// 次元不一致またはゼロベクトルの場合は最低値-1を返す
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return -1.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return -1.0
	}

	return dotProduct / (normA * normB)
}
