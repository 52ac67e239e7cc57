package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide writes step-by-step instructions for obtaining a Flickr
// API key.
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "📚 FLICKR API KEY GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "flickrharvest queries the public Flickr REST API, which needs an API key.")
	fmt.Fprintln(w, "Keys are free for non-commercial use.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Sign in to Flickr")
	fmt.Fprintln(w, "   - Go to https://www.flickr.com and log in (a free account is enough)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Create an app")
	fmt.Fprintln(w, "   - Open https://www.flickr.com/services/apps/create/")
	fmt.Fprintln(w, "   - Choose 'Apply for a Non-Commercial Key'")
	fmt.Fprintln(w, "   - Give the app a name and a short description")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔑 STEP 3: Copy the key")
	fmt.Fprintln(w, "   - Flickr shows a 'Key' and a 'Secret'")
	fmt.Fprintln(w, "   - Only the Key is needed; it is 32 hexadecimal characters")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "💾 STEP 4: Store it")
	fmt.Fprintln(w, "   - Run 'flickrharvest auth login' and paste the key when asked")
	fmt.Fprintf(w, "   - Or export %s for a one-off run\n", EnvAPIKey)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  Keep the key private: requests made with it count against your quota.")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)
}

// ShowQuickGuide is the one-paragraph version for experienced users
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🔑 Quick Guide: https://www.flickr.com/services/apps/create/ → Non-Commercial Key → copy 'Key'")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
