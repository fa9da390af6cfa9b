package storage

import (
	"cmp"
	"encoding/json"
	"errors"
	"slices"

	"bitga/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamp for records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeGeneration(stats model.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGeneration(data []byte) (model.GenerationStats, error) {
	var stats model.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return model.GenerationStats{}, err
	}
	if err := checkVersion(stats.VersionedRecord); err != nil {
		return model.GenerationStats{}, err
	}
	return stats, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func sortRuns(runs []model.Run) {
	slices.SortFunc(runs, func(a, b model.Run) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
