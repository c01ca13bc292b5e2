// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Storage object model for uploaded artifacts: where a finished thread's
// files live in the artifact bucket and how gs:// URIs are split back into
// bucket and object.
package cloud

import (
	"fmt"
	"path"
	"strings"
)

const gcsScheme = "gs://"

// GCSObject is a single object in a bucket.
type GCSObject struct {
	Bucket   string `json:"bucket"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type,omitempty"`
}

// URI renders the object as gs://bucket/name.
func (o GCSObject) URI() string {
	return gcsScheme + o.Bucket + "/" + o.Name
}

// ArtifactObjectName is the object name of a thread artifact: "<thread_id>/<file>".
func ArtifactObjectName(threadID string, fileName string) string {
	return path.Join(threadID, path.Base(fileName))
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (GCSObject, error) {
	if !strings.HasPrefix(uri, gcsScheme) {
		return GCSObject{}, fmt.Errorf("invalid GCS URI format: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return GCSObject{}, fmt.Errorf("invalid GCS URI: unable to determine bucket and object from %s", uri)
	}
	return GCSObject{Bucket: parts[0], Name: parts[1]}, nil
}
