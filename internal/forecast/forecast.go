// Package forecast estimates per blood type demand from past requests.
//
// Each blood type gets a Model: a least-squares line through (day offset,
// units) when there are at least two observations, otherwise the mean of
// whatever was observed. Day offsets are measured from the training date,
// so past requests have negative offsets and a horizon of N days is
// evaluated at x = N.
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"bloodbank/m/domain"
)

type Kind string

const (
	KindLinear       Kind = "linear"
	KindConstantMean Kind = "constant_mean"
)

// Model is either a LinearModel (Slope, Intercept) or a ConstantMean (Mean),
// discriminated by Kind.
type Model struct {
	Kind      Kind
	Slope     float64
	Intercept float64
	Mean      float64
}

// MarshalJSON writes the fields of the active kind only, zeros included.
func (m Model) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindLinear:
		return json.Marshal(struct {
			Kind      Kind    `json:"kind"`
			Slope     float64 `json:"slope"`
			Intercept float64 `json:"intercept"`
		}{m.Kind, m.Slope, m.Intercept})
	case KindConstantMean:
		return json.Marshal(struct {
			Kind Kind    `json:"kind"`
			Mean float64 `json:"mean"`
		}{m.Kind, m.Mean})
	default:
		return nil, fmt.Errorf("unknown model kind %q", m.Kind)
	}
}

func LinearModel(slope, intercept float64) Model {
	return Model{Kind: KindLinear, Slope: slope, Intercept: intercept}
}

func ConstantMean(mean float64) Model {
	return Model{Kind: KindConstantMean, Mean: mean}
}

// Observation is one past request.
type Observation struct {
	BloodType   domain.BloodType
	RequestDate string
	Units       int64
}

type Prediction struct {
	BloodType domain.BloodType `json:"blood_type"`
	Model     Model            `json:"model"`
	Units     float64          `json:"units"`
}

// Predict evaluates m at day offset x. Linear predictions never go below zero.
func Predict(m Model, x float64) float64 {
	switch m.Kind {
	case KindLinear:
		return math.Max(0, m.Intercept+m.Slope*x)
	case KindConstantMean:
		return m.Mean
	default:
		return 0
	}
}

// Train fits one model per blood type present in history. Observations with
// unparsable dates are skipped.
func Train(history []Observation, today time.Time) map[domain.BloodType]Model {
	base := truncateDay(today)
	xs := make(map[domain.BloodType][]float64)
	ys := make(map[domain.BloodType][]float64)
	for _, obs := range history {
		d, err := time.Parse(domain.DateLayout, obs.RequestDate)
		if err != nil {
			continue
		}
		offset := d.Sub(base).Hours() / 24
		xs[obs.BloodType] = append(xs[obs.BloodType], math.Round(offset))
		ys[obs.BloodType] = append(ys[obs.BloodType], float64(obs.Units))
	}

	models := make(map[domain.BloodType]Model, len(xs))
	for bt, x := range xs {
		models[bt] = fit(x, ys[bt])
	}
	return models
}

func fit(x, y []float64) Model {
	if len(y) == 0 {
		return ConstantMean(0)
	}
	if len(x) < 2 || stat.Variance(x, nil) == 0 {
		return ConstantMean(stat.Mean(y, nil))
	}
	intercept, slope := stat.LinearRegression(x, y, nil, false)
	return LinearModel(slope, intercept)
}

// Forecast returns a prediction for every blood type in canonical order.
// Types absent from models predict zero.
func Forecast(models map[domain.BloodType]Model, horizonDays int) []Prediction {
	out := make([]Prediction, 0, len(domain.BloodTypes))
	for _, bt := range domain.BloodTypes {
		m, ok := models[bt]
		if !ok {
			m = ConstantMean(0)
		}
		out = append(out, Prediction{BloodType: bt, Model: m, Units: Predict(m, float64(horizonDays))})
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
