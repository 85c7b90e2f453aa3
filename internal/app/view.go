package app

// View identifies a screen.
type View string

const (
	ViewAuth           View = "auth"
	ViewDashboard      View = "dashboard"
	ViewSelectPrawn    View = "select-prawn"
	ViewRegisterPrawn  View = "register-prawn"
	ViewLocationSetup  View = "location-setup"
	ViewImageSelection View = "image-selection"
	ViewCapture        View = "capture"
	ViewPredict        View = "predict"
	ViewHistory        View = "history"
	ViewChangePassword View = "change-password"
)

// Views lists every view in menu order.
var Views = []View{
	ViewDashboard, ViewSelectPrawn, ViewRegisterPrawn, ViewLocationSetup, ViewImageSelection,
	ViewCapture, ViewPredict, ViewHistory, ViewChangePassword, ViewAuth,
}

// ParseView converts a persisted identifier back into a View.
func ParseView(s string) (View, bool) {
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Title is the heading shown for the view.
func (v View) Title() string {
	switch v {
	case ViewAuth:
		return "Sign in"
	case ViewDashboard:
		return "Dashboard"
	case ViewSelectPrawn:
		return "Select prawn"
	case ViewRegisterPrawn:
		return "Register prawn"
	case ViewLocationSetup:
		return "Locations"
	case ViewImageSelection:
		return "Choose image source"
	case ViewCapture:
		return "Capture"
	case ViewPredict:
		return "Prediction"
	case ViewHistory:
		return "History"
	case ViewChangePassword:
		return "Change password"
	default:
		return string(v)
	}
}

// needsSelection reports whether v shows per-prawn content and so requires a selected prawn.
func (v View) needsSelection() bool {
	switch v {
	case ViewHistory, ViewImageSelection, ViewCapture, ViewPredict:
		return true
	default:
		return false
	}
}
