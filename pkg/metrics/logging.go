package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// NewRelicLogFormatter wraps a logrus.Formatter and forwards every entry to
// New Relic, linked to the transaction carried by the entry's context when
// there is one. Unlike the stock nrlogrus formatter, entry fields are kept in
// the forwarded message.
type NewRelicLogFormatter struct {
	app  *newrelic.Application
	base logrus.Formatter
}

func NewCustomNewRelicLogFormatter(app *newrelic.Application, base logrus.Formatter) *NewRelicLogFormatter {
	return &NewRelicLogFormatter{
		app:  app,
		base: base,
	}
}

func (f *NewRelicLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	formatted, err := f.base.Format(e)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(bytes.TrimRight(formatted, "\n"))

	logData := newrelic.LogData{
		Severity: e.Level.String(),
		Message:  summarizeEntry(e),
	}

	var txn *newrelic.Transaction
	if e.Context != nil {
		txn = newrelic.FromContext(e.Context)
	}

	if txn != nil {
		txn.RecordLog(logData)
		err = newrelic.EnrichLog(buf, newrelic.FromTxn(txn))
	} else {
		f.app.RecordLog(logData)
		err = newrelic.EnrichLog(buf, newrelic.FromApp(f.app))
	}
	if err != nil {
		return nil, err
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// summarizeEntry folds the entry's fields into a single message line, with
// the error field pulled out on its own.
func summarizeEntry(e *logrus.Entry) string {
	if len(e.Data) == 0 {
		return e.Message
	}

	errString := "<nil>"
	fields := make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		if k != logrus.ErrorKey {
			fields[k] = v
			continue
		}
		if err, ok := v.(error); ok {
			errString = fmt.Sprintf("%q", err.Error())
		}
	}

	// encoding/json sorts map keys
	encoded, err := json.Marshal(fields)
	if err != nil {
		return e.Message
	}
	return fmt.Sprintf("message=%q, error=%s, data=%s", e.Message, errString, encoded)
}
