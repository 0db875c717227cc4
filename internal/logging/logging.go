package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// Init sets up dual logging to stdout and a log file. When path is empty,
// logging stays on stdout only. Failures to open the file are non-fatal.
func Init(path string) {
	if path == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("WARNING: cannot create log directory: %v", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("WARNING: cannot open log file %s: %v", path, err)
		return
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.Printf("Logging to file: %s", path)
}
