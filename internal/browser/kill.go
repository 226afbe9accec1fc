package browser

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/process"
)

// KillBrowser force-terminates every process whose executable name matches
// one of names, children included since they share the name. It returns the
// number of processes killed.
func KillBrowser(ctx context.Context, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	var errs *multierror.Error
	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !matchesName(name, names) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		killed++
	}
	return killed, errs.ErrorOrNil()
}

func matchesName(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
