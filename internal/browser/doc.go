// Package browser drives headless Chrome through chromedp.
//
// The Page interface is the rendering capability the crawler and the login
// step consume. Tab is its chromedp implementation; tests in other packages
// substitute in-memory fakes.
//
// # Usage
//
//	b := browser.New(browser.WithHeadless(true))
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	tab, err := b.NewTab()
//	if err != nil {
//	    return err
//	}
//	defer tab.Close()
//
//	err = tab.Navigate(ctx, "https://example.com/")
package browser
