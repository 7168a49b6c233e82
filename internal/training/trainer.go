// Package training fits one ordinary least-squares regression model per
// metric from the aggregate dataset and packages it for deployment.
package training

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// splitSeed drives the train/test shuffle. The seed is part of the training
// contract: reconstructing a split elsewhere must produce identical sets.
const splitSeed = 42

// testFraction is the held-out share of rows used for the fit report.
const testFraction = 0.2

// Model is a fitted linear regression for one metric. Intercept is zero for
// models fitted here: the day indicator columns carry the per-day baseline.
type Model struct {
	Target       models.Metric `json:"target"`
	Intercept    float64       `json:"intercept"`
	Coefficients []float64     `json:"coefficients"`
}

// Predict evaluates the model on one feature vector.
func (m *Model) Predict(v []float64) float64 {
	out := m.Intercept
	for i, c := range m.Coefficients {
		out += c * v[i]
	}
	return out
}

// Report carries fit-quality metrics. They are observability output only:
// a poor fit never blocks deployment.
type Report struct {
	RSquared float64
	RMSE     float64
	Train    int
	Test     int
}

// Trainer fits models from training frames.
type Trainer struct {
	logger *logrus.Logger
}

// NewTrainer creates a trainer
func NewTrainer(logger *logrus.Logger) *Trainer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Trainer{logger: logger}
}

// Train splits x/y 80/20 with the fixed seed, fits OLS on the training
// share and evaluates R-squared and RMSE on the held-out share.
func (t *Trainer) Train(target models.Metric, x [][]float64, y []float64) (*Model, *Report, error) {
	if len(x) != len(y) {
		return nil, nil, errors.WrapError(errors.ErrModelTrainingFailed, errors.ErrorTypeTraining, errors.CodeTrainingFailed,
			"feature and target lengths differ")
	}

	width := 0
	if len(x) > 0 {
		width = len(x[0])
	}
	// Need more training rows than coefficients for the normal equations to
	// be solvable.
	minRows := int(math.Ceil(float64(width+2) / (1 - testFraction)))
	if len(x) < minRows {
		return nil, nil, errors.WrapError(errors.ErrInsufficientData, errors.ErrorTypeTraining, errors.CodeInsufficientData,
			"not enough rows to fit a model")
	}

	trainX, trainY, testX, testY := split(x, y)

	model, err := fitOLS(target, trainX, trainY)
	if err != nil {
		return nil, nil, err
	}

	predicted := make([]float64, len(testX))
	for i, v := range testX {
		predicted[i] = model.Predict(v)
	}

	report := &Report{
		RSquared: stat.RSquaredFrom(predicted, testY, nil),
		RMSE:     rmse(predicted, testY),
		Train:    len(trainX),
		Test:     len(testX),
	}

	t.logger.WithFields(logrus.Fields{
		"metric":    target,
		"r_squared": report.RSquared,
		"rmse":      report.RMSE,
		"train":     report.Train,
		"test":      report.Test,
	}).Info("Model fitted")

	return model, report, nil
}

// split shuffles row indices with the fixed seed and carves off the last
// 20% as the test set.
func split(x [][]float64, y []float64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(x)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(splitSeed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	testN := int(float64(n) * testFraction)
	trainN := n - testN

	for _, idx := range indices[:trainN] {
		trainX = append(trainX, x[idx])
		trainY = append(trainY, y[idx])
	}
	for _, idx := range indices[trainN:] {
		testX = append(testX, x[idx])
		testY = append(testY, y[idx])
	}
	return trainX, trainY, testX, testY
}

// fitOLS solves the normal equations for the design matrix. There is no
// separate intercept column: exactly one day indicator is set per row, so
// adding one would make the system singular.
func fitOLS(target models.Metric, x [][]float64, y []float64) (*Model, error) {
	n := len(x)
	width := len(x[0])

	design := mat.NewDense(n, width, nil)
	for i, row := range x {
		for j, v := range row {
			design.Set(i, j, v)
		}
	}
	yVec := mat.NewVecDense(n, y)

	var xtx mat.Dense
	xtx.Mul(design.T(), design)

	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeTraining, errors.CodeTrainingFailed,
			"normal equations are singular")
	}

	coeffs := make([]float64, width)
	for i := 0; i < width; i++ {
		coeffs[i] = beta.AtVec(i)
	}

	return &Model{
		Target:       target,
		Coefficients: coeffs,
	}, nil
}

func rmse(predicted, observed []float64) float64 {
	if len(observed) == 0 {
		return 0
	}
	var sum float64
	for i := range observed {
		d := observed[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(observed)))
}
