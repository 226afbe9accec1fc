package browser

import (
	"context"

	"github.com/chromedp/chromedp"
	"github.com/hashicorp/go-multierror"
	"github.com/signalnine/wptnightly/internal/config"
)

// Session is one isolated browser instance. It is bound to the context it
// was launched with; Close releases every resource it holds.
type Session interface {
	ResultCells(url string) ([][]string, error)
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, target config.Target) (Session, error)
}

type chromeSession struct {
	tab     context.Context
	closers []func() error
}

func (s *chromeSession) ResultCells(url string) ([][]string, error) {
	var cells [][]string
	err := chromedp.Run(s.tab,
		chromedp.Navigate(url),
		chromedp.WaitReady(ResultsSelector, chromedp.ByQuery),
		chromedp.Evaluate(cellsScript, &cells),
	)
	return cells, err
}

// Close runs the release steps in reverse acquisition order.
func (s *chromeSession) Close() error {
	var errs *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	s.closers = nil
	return errs.ErrorOrNil()
}

func (s *chromeSession) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func cancelFunc(cancel context.CancelFunc) func() error {
	return func() error {
		cancel()
		return nil
	}
}

// startTab opens the first tab, which also starts the browser, and
// registers a graceful close ahead of the context cancellations.
func startTab(s *chromeSession, alloc context.Context) error {
	tab, cancelTab := chromedp.NewContext(alloc)
	s.onClose(cancelFunc(cancelTab))
	if err := chromedp.Run(tab); err != nil {
		return err
	}
	s.tab = tab
	s.onClose(func() error {
		// Past the deadline Cancel reports the expiry; the context
		// cancellations that follow still tear the browser down.
		expired := tab.Err() != nil
		if err := chromedp.Cancel(tab); err != nil && !expired {
			return err
		}
		return nil
	})
	return nil
}
