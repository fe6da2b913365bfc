package main

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/pkg/classify"
	"github.com/teslashibe/go-facelabel/pkg/detection"
)

// models holds everything loaded from the model directory.
type models struct {
	detector detection.Detector
	age      *classify.AgeClassifier
	gender   *classify.GenderClassifier
}

// loadModels loads the detector and both classifiers. Any missing or
// unreadable file is an error and nothing is left open.
func loadModels(f config.File, cuda bool) (*models, error) {
	paths := config.Models(f.Models.Dir)

	dcfg := detection.DefaultConfig()
	if f.Detector.Backend != "" {
		dcfg.Backend = f.Detector.Backend
	}
	dcfg.CascadePath = paths.Cascade
	if f.Detector.Cascade != "" {
		dcfg.CascadePath = f.Detector.Cascade
	}
	dcfg.ModelPath = paths.YuNet
	if f.Detector.ScaleFactor > 0 {
		dcfg.ScaleFactor = f.Detector.ScaleFactor
	}
	if f.Detector.MinNeighbors > 0 {
		dcfg.MinNeighbors = f.Detector.MinNeighbors
	}
	if errs := dcfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("detector config: %v", errs)
	}

	var opts []classify.NetOption
	if cuda {
		opts = append(opts, classify.WithCUDA())
	}

	m := &models{}
	var err error

	if m.detector, err = detection.New(dcfg); err != nil {
		return nil, err
	}

	ageNet, err := classify.LoadModel(paths.AgeProto, paths.AgeWeights, opts...)
	if err != nil {
		return nil, multierr.Append(err, m.Close())
	}
	if m.age, err = classify.NewAge(ageNet); err != nil {
		return nil, multierr.Combine(err, ageNet.Close(), m.Close())
	}

	genderNet, err := classify.LoadModel(paths.GenderProto, paths.GenderWeights, opts...)
	if err != nil {
		return nil, multierr.Append(err, m.Close())
	}
	if m.gender, err = classify.NewGender(genderNet); err != nil {
		return nil, multierr.Combine(err, genderNet.Close(), m.Close())
	}

	return m, nil
}

// Close releases every loaded model.
func (m *models) Close() error {
	var err error
	if m.detector != nil {
		err = multierr.Append(err, m.detector.Close())
	}
	if m.age != nil {
		err = multierr.Append(err, m.age.Close())
	}
	if m.gender != nil {
		err = multierr.Append(err, m.gender.Close())
	}
	return err
}
