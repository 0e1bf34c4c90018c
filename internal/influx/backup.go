package influx

import (
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// lineBackup appends points as gzipped line protocol. Each run adds a new gzip
// member to the file, which gzip readers concatenate.
type lineBackup struct {
	file *os.File
	gz   *gzip.Writer
}

func openLineBackup(path string) (*lineBackup, error) {
	if path == "" {
		return nil, errors.New("no influx backup path configured")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating backup file: %w", err)
	}
	return &lineBackup{file: f, gz: gzip.NewWriter(f)}, nil
}

func (b *lineBackup) write(p *influxdb2_write.Point) error {
	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	if len(p.TagList()) == 0 {
		// the encoder writes the tag separator even without tags
		line = strings.Replace(line, ", ", " ", 1)
	}
	if _, err := b.gz.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (b *lineBackup) close() error {
	return errors.Join(b.gz.Close(), b.file.Close())
}
