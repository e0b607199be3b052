package helper

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir is where downloaded embedding models are stored.
const DefaultModelDir = "./models"

// PrepareModel downloads the model if it doesn't exist and returns the model path.
// The local directory name is the model name with slashes replaced by underscores.
// An empty onnxFilePath lets the download pick the single .onnx file of the repository.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelPath := localModelPath(modelName)

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", NewError("failed to stat model directory", err)
	}

	if err := os.MkdirAll(DefaultModelDir, 0750); err != nil {
		return "", NewError("failed to create model directory", err)
	}

	downloadedPath, err := hugot.DownloadModel(modelName, DefaultModelDir, modelDownloadOptions(onnxFilePath))
	if err != nil {
		return "", NewError("failed to download model", err)
	}

	return downloadedPath, nil
}

func localModelPath(modelName string) string {
	return filepath.Join(DefaultModelDir, strings.ReplaceAll(modelName, "/", "_"))
}

func modelDownloadOptions(onnxFilePath string) hugot.DownloadOptions {
	options := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		options.OnnxFilePath = onnxFilePath
	}
	return options
}
