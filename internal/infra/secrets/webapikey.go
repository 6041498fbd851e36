// internal/infra/secrets/webapikey.go
package secrets

import (
	"context"
	"errors"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// LoadWebAPIKey resolves the Identity Toolkit web API key from Secret Manager.
// version defaults to "latest".
func LoadWebAPIKey(ctx context.Context, projectID, secretName, version string) (string, error) {
	prj := strings.TrimSpace(projectID)
	if prj == "" {
		return "", errors.New("secrets: projectID is empty")
	}
	name := strings.TrimSpace(secretName)
	if name == "" {
		return "", errors.New("secrets: secretName is empty")
	}
	ver := strings.TrimSpace(version)
	if ver == "" {
		ver = "latest"
	}

	sm, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", errors.New("secrets: secretmanager client init failed: " + err.Error())
	}
	defer sm.Close()

	full := "projects/" + prj + "/secrets/" + name + "/versions/" + ver
	resp, err := sm.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: full})
	if err != nil {
		return "", errors.New("secrets: AccessSecretVersion failed (" + full + "): " + err.Error())
	}
	if resp == nil || resp.Payload == nil {
		return "", errors.New("secrets: empty payload (" + full + ")")
	}

	return strings.TrimSpace(string(resp.Payload.Data)), nil
}
