// Package route53 implements the dns.Provider contract on top of AWS
// Route 53. One dns.Change batch maps to one ChangeResourceRecordSets call,
// which Route 53 applies atomically.
package route53

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/zoneup/zoneup/internal/server/dns"
)

// defaultTTL is applied to every record the reconciler manages. Dynamic-DNS
// records must stay short-lived so clients pick up address changes quickly.
const defaultTTL int64 = 60

// API is the subset of the Route 53 client the provider uses.
type API interface {
	ChangeResourceRecordSets(ctx context.Context, params *awsroute53.ChangeResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ChangeResourceRecordSetsOutput, error)
	ListResourceRecordSets(ctx context.Context, params *awsroute53.ListResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ListResourceRecordSetsOutput, error)
}

// Provider talks to one hosted zone.
type Provider struct {
	client API
	zoneID string
}

// New constructs a Provider for the given hosted zone.
func New(client API, zoneID string) *Provider {
	return &Provider{client: client, zoneID: zoneID}
}

// Exists looks the record up by exact name and type and returns its current
// value (the first resource record) when present.
func (p *Provider) Exists(ctx context.Context, name string, recordType dns.RecordType) (string, bool, error) {
	out, err := p.client.ListResourceRecordSets(ctx, &awsroute53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(p.zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: rrType(recordType),
		MaxItems:        aws.Int32(1),
	})
	if err != nil {
		return "", false, fmt.Errorf("listing record sets: %w", err)
	}
	for _, rrs := range out.ResourceRecordSets {
		if !nameEqual(aws.ToString(rrs.Name), name) || rrs.Type != rrType(recordType) {
			continue
		}
		if len(rrs.ResourceRecords) == 0 {
			return "", false, nil
		}
		return aws.ToString(rrs.ResourceRecords[0].Value), true, nil
	}
	return "", false, nil
}

// Commit submits the whole batch in one ChangeResourceRecordSets call.
// Route 53 applies the batch atomically: either every change lands or none.
func (p *Provider) Commit(ctx context.Context, changes []dns.Change) error {
	if len(changes) == 0 {
		return nil
	}

	batch := make([]types.Change, 0, len(changes))
	for _, c := range changes {
		action := types.ChangeActionUpsert
		if c.Op == dns.OpDelete {
			action = types.ChangeActionDelete
		}
		batch = append(batch, types.Change{
			Action: action,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name:            aws.String(c.Name),
				Type:            rrType(c.Type),
				TTL:             aws.Int64(defaultTTL),
				ResourceRecords: []types.ResourceRecord{{Value: aws.String(c.Value)}},
			},
		})
	}

	_, err := p.client.ChangeResourceRecordSets(ctx, &awsroute53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(p.zoneID),
		ChangeBatch:  &types.ChangeBatch{Changes: batch},
	})
	if err != nil {
		return fmt.Errorf("changing record sets: %w", err)
	}
	return nil
}

func rrType(t dns.RecordType) types.RRType {
	switch t {
	case dns.TypeA:
		return types.RRTypeA
	case dns.TypeCNAME:
		return types.RRTypeCname
	case dns.TypeSRV:
		return types.RRTypeSrv
	default:
		return types.RRType(t)
	}
}

// nameEqual compares record names ignoring the trailing dot Route 53
// returns on fully-qualified names.
func nameEqual(a, b string) bool {
	return strings.TrimSuffix(a, ".") == strings.TrimSuffix(b, ".")
}
