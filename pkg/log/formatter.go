package log

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

const defaultTimestampFormat = "2006/01/02 15:04:05.000000"

var levelTags = map[logrus.Level]string{
	logrus.TraceLevel: "TRA",
	logrus.DebugLevel: "DEB",
	logrus.InfoLevel:  "INF",
	logrus.WarnLevel:  "WAR",
	logrus.ErrorLevel: "ERR",
	logrus.FatalLevel: "FAT",
	logrus.PanicLevel: "PAN",
}

// SimpleFormatter writes one line per entry:
//
//	2025/04/06 17:30:00.000000 [INF] message key1=value1 key2=value2
//
// Fields are sorted by key.
type SimpleFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter
func (f *SimpleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	layout := f.TimestampFormat
	if layout == "" {
		layout = defaultTimestampFormat
	}
	b.WriteString(entry.Time.Format(layout))

	b.WriteString(" [")
	b.WriteString(levelTags[entry.Level])
	b.WriteString("] ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		writeValue(b, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeValue(b *bytes.Buffer, v interface{}) {
	switch val := v.(type) {
	case string:
		b.WriteString(val)
	case error:
		b.WriteString(val.Error())
	default:
		fmt.Fprint(b, val)
	}
}
