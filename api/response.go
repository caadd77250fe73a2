/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/bunrest/utils"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Response is a handler result with an explicit status and headers.
type Response struct {
	Status int
	Header http.Header
	Data   interface{}
}

func (resp *Response) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	writeJSON(w, resp.Status, resp.Data)
}

// Redirect answers with 302 Found.
type Redirect struct {
	Location string
}

func (rd *Redirect) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Location", rd.Location)
	w.WriteHeader(http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if status == http.StatusNoContent || (data == nil && status != http.StatusOK) {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// serve writes a handler result: nil is 204, an http.Handler serves
// itself, anything else is encoded as a 200 JSON body.
func serve(w http.ResponseWriter, r *http.Request, result interface{}) {
	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case http.Handler:
		v.ServeHTTP(w, r)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *Api) writeError(w http.ResponseWriter, r *http.Request, err error, body []byte) {
	apiErr := AsError(err)
	entry := a.logger.WithFields(logrus.Fields{
		utils.FieldRequestURI: r.RequestURI,
		utils.FieldMethod:     r.Method,
		utils.FieldRequestID:  RequestIDFrom(r.Context()),
	})
	if apiErr.Status() >= http.StatusInternalServerError {
		entry.WithError(err).Error("request error")
	} else {
		entry.Debugf("%s: %s", apiErr.Kind, apiErr.Message)
	}

	request := map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"GET":    queryData(r),
		"META":   requestMeta(r),
	}
	if body != nil {
		request["body"] = string(body)
	}
	data := map[string]interface{}{
		"error":       string(apiErr.Kind),
		"description": apiErr.Message,
		"request":     request,
	}
	if a.settings.Debug {
		data["stack"] = strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
	}
	if apiErr.Kind == KindMethodNotAllowed {
		if allow, ok := apiErr.Err.(allowError); ok {
			w.Header().Set("Allow", strings.ToUpper(strings.Join(allow, ", ")))
		}
	}
	writeJSON(w, apiErr.Status(), data)
}

type allowError []string

func (a allowError) Error() string { return "allowed: " + strings.Join(a, ", ") }

func queryData(r *http.Request) map[string]interface{} {
	data := make(map[string]interface{})
	for k, v := range r.URL.Query() {
		if len(v) == 1 {
			data[k] = v[0]
		} else {
			data[k] = v
		}
	}
	return data
}

func requestMeta(r *http.Request) map[string]string {
	data := map[string]string{
		"REMOTE_ADDR":    r.RemoteAddr,
		"REQUEST_METHOD": r.Method,
		"PATH_INFO":      r.URL.Path,
		"QUERY_STRING":   r.URL.RawQuery,
	}
	for k, v := range r.Header {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		switch key {
		case "COOKIE":
			continue
		case "CONTENT_TYPE", "CONTENT_LENGTH":
		default:
			key = "HTTP_" + key
		}
		data[key] = strings.Join(v, ",")
	}
	return data
}
