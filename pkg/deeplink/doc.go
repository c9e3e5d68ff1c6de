// Package deeplink keeps a live view's fields in two-way agreement with the
// browser URL.
//
// Inflow (URL → view): on activation, and whenever the host reports new
// path or query parameters, each declared field is compared with its URL
// parameter in string form and assigned the coerced value only if the two
// differ.
//
// Outflow (view → URL): every user-driven change of a declared field
// rebuilds the URL (the template-aligned path segment, or the query key)
// and asks the host to navigate there. A newer change of the same field
// supersedes a navigation that is still pending. Different fields never
// cancel each other.
//
// The string-form comparison is what keeps the two directions from
// looping: the URL produced by outflow flows back through inflow as a
// no-op because it already matches the field.
//
// # Views
//
// A view exposes its synchronizable fields by name. Fields that also
// implement Notifier report user edits and take part in outflow; the rest
// are inflow-only.
//
//	type UserDetail struct {
//	    ID  *deeplink.Value[float64]
//	    Tab *deeplink.Value[string]
//	}
//
//	func (v *UserDetail) Fields() map[string]deeplink.Field {
//	    return map[string]deeplink.Field{"id": v.ID, "tab": v.Tab}
//	}
//
// # Lifetime
//
//	s, err := deeplink.Activate(ctx, routes, view, host,
//	    deeplink.WithLogger(logger),
//	    deeplink.WithMetrics(metrics),
//	)
//	if err != nil {
//	    return err // missing config, bad declaration, or malformed json in the URL
//	}
//	defer s.Close()
//
// Close releases every subscription, cancels pending navigations and waits
// for them to return. After Close no field is written and no navigation is
// issued.
package deeplink
