// Package credentials decides which credential each requested model uses.
package credentials

import (
	"github.com/brandlens/brandlens/internal/domain"
)

// Accepted pairs a model with the credential the fan-out will use for it.
type Accepted struct {
	Model  string
	Key    string
	Source string
}

// Resolution is the outcome of credential resolution for one request batch.
// FreeTier is true when the whole batch runs on platform credentials; the
// caller consumes the free quota exactly once in that case.
type Resolution struct {
	Accepted []Accepted
	Missing  []string
	FreeTier bool
}

// Resolve is a pure decision function: no network, no side effects.
//
// With free quota available every requested model is accepted on the
// platform key for its provider. Otherwise each model needs a stored user
// key; models without one land in Missing. The caller raises
// CredentialsRequired when Accepted comes back empty.
func Resolve(models []string, freeQuota bool, platformKeys, userKeys map[string]string) Resolution {
	res := Resolution{FreeTier: freeQuota}
	if freeQuota {
		for _, m := range models {
			res.Accepted = append(res.Accepted, Accepted{
				Model:  m,
				Key:    platformKeys[m],
				Source: domain.KeySourcePlatform,
			})
		}
		return res
	}
	for _, m := range models {
		key, ok := userKeys[m]
		if !ok || key == "" {
			res.Missing = append(res.Missing, m)
			continue
		}
		res.Accepted = append(res.Accepted, Accepted{Model: m, Key: key, Source: domain.KeySourceUser})
	}
	return res
}
