package docker

import (
	"context"
	"fmt"
	"os/exec"
)

// Label marks every container started by StartBrowser.
const Label = "wptnightly=true"

// Prune removes stopped browser containers left behind by crashed runs.
func Prune(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, "docker", "container", "prune", "-f", "--filter", "label="+Label).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pruning browser containers: %w: %s", err, out)
	}
	return nil
}
