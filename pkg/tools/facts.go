package tools

import (
	"time"
)

// factsTTL keeps curated facts alive far beyond live search results; they
// describe things that change on the order of quarters, not hours.
const factsTTL = 90 * 24 * time.Hour

// curatedFact is one pre-answered search query
type curatedFact struct {
	query   string
	content string
	url     string
}

// curatedFacts holds baseline cloud-service information that changes
// infrequently. Seeding these avoids burning tool budget on queries the
// research loop asks constantly.
var curatedFacts = []curatedFact{
	{
		query: "aws regions list",
		content: `Major AWS regions: us-east-1 N. Virginia, us-east-2 Ohio, us-west-1 N. California, us-west-2 Oregon, eu-west-1 Ireland, eu-west-2 London, eu-central-1 Frankfurt, ap-southeast-1 Singapore, ap-southeast-2 Sydney, ap-northeast-1 Tokyo.`,
		url:   "https://aws.amazon.com/about-aws/global-infrastructure/regions_az/",
	},
	{
		query: "aws ec2 instance families",
		content: `AWS EC2 instance families: t3/t4g general purpose burstable (t4g ARM), m5/m6g general purpose (m6g ARM), c5/c6g compute optimized, r5/r6g memory optimized.`,
		url:   "https://aws.amazon.com/ec2/instance-types/",
	},
	{
		query: "aws rds database engines",
		content: `Amazon RDS engines and supported versions: PostgreSQL 12-16, MySQL 5.7/8.0, MariaDB 10.6/10.11, SQL Server 2017/2019/2022.`,
		url:   "https://aws.amazon.com/rds/",
	},
	{
		query: "aws rds storage types",
		content: `RDS storage: gp2 General Purpose SSD (3 IOPS/GB, max 3,000 IOPS), gp3 (baseline 3,000 IOPS, max 16,000), io1 Provisioned IOPS (1-256,000 IOPS), magnetic (legacy, deprecated).`,
		url:   "https://docs.aws.amazon.com/AmazonRDS/latest/UserGuide/CHAP_Storage.html",
	},
	{
		query: "aws pricing models",
		content: `AWS pricing models: on-demand (pay per hour/second, no commitment), reserved (1 or 3 year term, 30-40% discount), savings plans (flexible commitment, 40-66% discount), spot (up to 90% discount, reclaimable).`,
		url:   "https://aws.amazon.com/pricing/",
	},
	{
		query: "gcp regions list",
		content: `Major GCP regions: us-east1 South Carolina, us-east4 N. Virginia, us-west1 Oregon, us-west2 Los Angeles, us-central1 Iowa, europe-west1 Belgium, europe-west4 Netherlands, asia-southeast1 Singapore, asia-northeast1 Taiwan, asia-northeast3 Seoul.`,
		url:   "https://cloud.google.com/about/locations",
	},
	{
		query: "gcp machine types",
		content: `GCP machine families: e2 general purpose AMD/Intel (e2-medium: 2 vCPU, 4GB), n2 general purpose Intel Xeon (standard/highmem/highcpu variants), c2 compute optimized, t2a general purpose AMD Milan.`,
		url:   "https://cloud.google.com/compute/docs/machine-resource",
	},
	{
		query: "gcp cloud sql database engines",
		content: `Cloud SQL engines: PostgreSQL 12-16, MySQL 5.7/8.0, SQL Server 2017/2019/2022. Pricing components: vCPU, memory, storage (SSD/HDD), network egress.`,
		url:   "https://cloud.google.com/sql/docs",
	},
}

// SeedCuratedFacts loads the curated facts into the cache under the search
// tool's namespace, so the facts are consulted before live search.
func SeedCuratedFacts(cache *Cache) error {
	for _, fact := range curatedFacts {
		out := Output{
			Content:   fact.content,
			Citations: []Citation{{URL: fact.url}},
		}
		if err := cache.Seed("google_search", fact.query, out, factsTTL); err != nil {
			return err
		}
	}
	return nil
}
