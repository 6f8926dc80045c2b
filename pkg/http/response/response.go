package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hookrelay/hookrelay/constants"
)

func JSON(w http.ResponseWriter, code int, data interface{}) {
	writeJSON(w, code, data, false)
}

func PrettyJSON(w http.ResponseWriter, code int, data interface{}) {
	writeJSON(w, code, data, true)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}, pretty bool) {
	for _, header := range constants.DefaultResponseHeaders {
		w.Header().Set(header.Name, header.Value)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	w.WriteHeader(code)

	if data == nil {
		return
	}

	var bytes []byte
	switch v := data.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		var err error
		if pretty {
			bytes, err = json.MarshalIndent(data, "", "  ")
		} else {
			bytes, err = json.Marshal(data)
		}
		if err != nil {
			panic(err)
		}
	}
	_, err := w.Write(bytes)
	if err != nil {
		panic(err)
	}
}

func Text(w http.ResponseWriter, code int, body string) {
	for _, header := range constants.DefaultResponseHeaders {
		w.Header().Set(header.Name, header.Value)
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	_, err := w.Write([]byte(body))
	if err != nil {
		panic(err)
	}
}

// TooManyRequests answers 429 with a Retry-After header rounded up to whole seconds.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration, data interface{}) {
	seconds := int64((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	JSON(w, http.StatusTooManyRequests, data)
}
