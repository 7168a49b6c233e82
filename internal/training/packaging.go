package training

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/storage"
	"github.com/atmolab/atmocast/pkg/errors"
	"github.com/atmolab/atmocast/pkg/models"
)

// adapterScript is the fixed inference adapter bundled with every model
// archive. The serving container loads model.json next to it and answers
// {"features": [...]} requests with a single scalar.
const adapterScript = `#!/usr/bin/env python3
import json
import sys

with open("/opt/ml/model/model.json") as f:
    model = json.load(f)

def predict(features):
    value = model["intercept"]
    for c, x in zip(model["coefficients"], features):
        value += c * x
    return value

if __name__ == "__main__":
    payload = json.load(sys.stdin)
    print(json.dumps({"prediction": predict(payload["features"])}))
`

// ArtifactKey returns the store key for one metric's packaged model.
func ArtifactKey(date string, metric models.Metric) string {
	return fmt.Sprintf("models/%s-%s-model.tar.gz", date, metric)
}

// Package serializes the model and bundles it with the inference adapter
// into a tar.gz archive, uploaded under models/. Returns the artifact key.
func (t *Trainer) Package(ctx context.Context, store storage.ObjectStore, model *Model, date string) (string, error) {
	modelJSON, err := json.Marshal(model)
	if err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeTraining, errors.CodePackagingFailed, "failed to serialize model")
	}

	archive, err := buildArchive(map[string][]byte{
		"model.json": modelJSON,
		"serve.py":   []byte(adapterScript),
	})
	if err != nil {
		return "", err
	}

	key := ArtifactKey(date, model.Target)
	if err := store.Put(ctx, key, archive); err != nil {
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed,
			"failed to upload model archive '"+key+"'")
	}

	t.logger.WithFields(logrus.Fields{
		"metric": model.Target,
		"key":    key,
		"bytes":  len(archive),
	}).Info("Model archive uploaded")

	return key, nil
}

func buildArchive(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	// Fixed order so identical inputs produce identical archives.
	for _, name := range []string{"model.json", "serve.py"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(content)),
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeTraining, errors.CodePackagingFailed, "failed to write archive header")
		}
		if _, err := tw.Write(content); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeTraining, errors.CodePackagingFailed, "failed to write archive entry")
		}
	}

	if err := tw.Close(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeTraining, errors.CodePackagingFailed, "failed to finalize archive")
	}
	if err := gz.Close(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeTraining, errors.CodePackagingFailed, "failed to compress archive")
	}
	return buf.Bytes(), nil
}
