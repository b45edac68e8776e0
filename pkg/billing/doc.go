// Package billing collects failed invoices for manual dunning actions.
//
// StripeGateway implements dunning.Gateway on top of the Stripe API:
//
//	gw, err := billing.NewStripeGateway(billing.StripeConfig{APIKey: key}, logger, metrics)
//	if err != nil {
//		return err
//	}
//	paid, err := gw.RetryPayment(ctx, "in_123")
//
// A declined card is not an error: RetryPayment reports paid=false and the
// dunning engine records the attempt as FAILED. Only API and transport
// failures are returned, mapped onto the lifecycle error kinds.
//
// When no Stripe key is configured the platform client serves as the
// gateway and the billing service performs the charge.
package billing
