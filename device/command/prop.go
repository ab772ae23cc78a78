package command

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DeviceProp is the aggregate result of GetProp: whichever of the four
// fanned-out queries succeeded, plus the most recent clean record when
// the clean summary reported one.
type DeviceProp struct {
	Status       *Status
	DNDTimer     *DNDTimer
	CleanSummary *CleanSummary
	Consumable   *Consumable
	LastCleanRecord *CleanRecord
}

// GetProp runs GetStatus, GetDNDTimer, GetCleanSummary, and GetConsumable
// concurrently via an errgroup, then — only if the clean summary reports
// at least one record — issues GetCleanRecord for the most recent one.
// Returns a DeviceProp aggregate if at least one sub-call succeeded; a
// nil DeviceProp only if every sub-call failed.
func (c *Client) GetProp(ctx context.Context) (*DeviceProp, error) {
	var prop DeviceProp
	var firstErr error

	var g errgroup.Group
	g.Go(func() error {
		s, err := c.GetStatus(ctx)
		if err != nil {
			return err
		}
		prop.Status = &s
		return nil
	})
	g.Go(func() error {
		d, err := c.GetDNDTimer(ctx)
		if err != nil {
			return err
		}
		prop.DNDTimer = &d
		return nil
	})
	g.Go(func() error {
		s, err := c.GetCleanSummary(ctx)
		if err != nil {
			return err
		}
		prop.CleanSummary = &s
		return nil
	})
	g.Go(func() error {
		cons, err := c.GetConsumable(ctx)
		if err != nil {
			return err
		}
		prop.Consumable = &cons
		return nil
	})
	firstErr = g.Wait()

	if prop.CleanSummary != nil && len(prop.CleanSummary.Records) > 0 {
		record, err := c.GetCleanRecord(ctx, prop.CleanSummary.Records[0])
		if err == nil {
			prop.LastCleanRecord = &record
		}
	}

	if prop.Status == nil && prop.DNDTimer == nil && prop.CleanSummary == nil && prop.Consumable == nil {
		return nil, firstErr
	}
	return &prop, nil
}
