//go:build windows

package records

import (
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// MSISource enumerates Windows Installer products through the
// WindowsInstaller.Installer automation interface. Product codes from
// here are authoritative even when the registry entry is incomplete.
type MSISource struct{}

func (MSISource) Records() ([]Record, error) {
	var recs []Record
	err := withInstaller(func(msi *ole.IDispatch) error {
		productsVar, err := oleutil.GetProperty(msi, "Products")
		if err != nil {
			return fmt.Errorf("enumerate products: %w", err)
		}
		defer productsVar.Clear()
		products := productsVar.ToIDispatch()

		countVar, err := oleutil.GetProperty(products, "Count")
		if err != nil {
			return fmt.Errorf("read product count: %w", err)
		}
		count := int(countVar.Val)

		for i := 0; i < count; i++ {
			itemVar, err := oleutil.GetProperty(products, "Item", i)
			if err != nil {
				log.Debug("skipping unreadable product", "index", i, "error", err)
				continue
			}
			code := itemVar.ToString()
			itemVar.Clear()
			if code == "" {
				continue
			}

			recs = append(recs, Record{
				ID:          code,
				DisplayName: productInfo(msi, code, "ProductName"),
				Version:     productInfo(msi, code, "VersionString"),
				Method:      "msi",
				InstallPath: productInfo(msi, code, "InstallLocation"),
			})
		}
		return nil
	})
	return recs, err
}

// Key returns the MSI product code, which is the record ID itself.
func (MSISource) Key(recordID string) (string, error) {
	if !productCodeRe.MatchString(recordID) {
		return "", fmt.Errorf("record %q is not an MSI product code", recordID)
	}
	return recordID, nil
}

func productInfo(msi *ole.IDispatch, code, attribute string) string {
	v, err := oleutil.GetProperty(msi, "ProductInfo", code, attribute)
	if err != nil {
		return ""
	}
	defer v.Clear()
	return v.ToString()
}

// withInstaller runs action against the Windows Installer automation
// object on a COM-initialized, OS-locked thread.
func withInstaller(action func(msi *ole.IDispatch) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		return fmt.Errorf("initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WindowsInstaller.Installer")
	if err != nil {
		return fmt.Errorf("create installer object: %w", err)
	}
	defer unknown.Release()

	msi, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("query installer interface: %w", err)
	}
	defer msi.Release()

	return action(msi)
}
