package compiler

import (
	"context"

	"github.com/openlearnhq/report-engine/internal/catalog"
	"github.com/openlearnhq/report-engine/internal/dialect"
	"github.com/openlearnhq/report-engine/internal/models"
	"github.com/openlearnhq/report-engine/internal/visibility"
)

const (
	joinAsset          JoinKey = "asset"
	joinAssetChannels  JoinKey = "asset_channels"
	joinAssetPublisher JoinKey = "asset_publisher"
	joinAssetRatings   JoinKey = "asset_ratings"
)

var assetViewsLabelKeys = []string{
	"report.label.yes", "report.label.no",
	"report.label.level.superadmin", "report.label.level.poweruser", "report.label.level.user",
	"report.label.asset.type.video", "report.label.asset.type.document",
	"report.label.asset.type.image", "report.label.asset.type.link",
}

// assetViewsCompiler produces the informal-learning asset views report. The
// view log lives only in the row-columnar engine, so only Athena compiles.
type assetViewsCompiler struct {
	base
}

// NewAssetViews builds the asset views compiler.
func NewAssetViews(deps Deps) Compiler {
	return &assetViewsCompiler{base: newBase(models.ReportTypeAssetViews, deps)}
}

func (c *assetViewsCompiler) Type() models.ReportType { return c.typ }

func (c *assetViewsCompiler) Default(session *models.SessionContext) *models.ReportDefinition {
	return &models.ReportDefinition{
		Type:       c.typ,
		Author:     session.UserID,
		Visibility: models.Visibility{Type: models.VisibilityAllAdmins},
		Fields: catalog.EnsureMandatory(c.typ, []string{
			catalog.FieldUserID,
			catalog.FieldUserFullname,
			catalog.FieldAssetName,
			catalog.FieldAssetNumberViews,
			catalog.FieldAssetLastAccess,
		}),
		Sorting:    models.Sorting{Selector: models.SortSelectorDefault, Direction: models.SortAsc},
		Conditions: models.AllConditions,
		Users:      &models.UsersFilter{All: true},
		Assets:     &models.AssetsFilter{All: true},
		Enrollment: models.EnrollmentFilter{
			EnrollmentDate: models.DateOption{Any: true},
			CompletionDate: models.DateOption{Any: true},
			ArchivingDate:  models.DateOption{Any: true},
		},
	}
}

func (c *assetViewsCompiler) Athena(ctx context.Context, req Request) (string, error) {
	return c.build(ctx, req, dialect.AthenaRenderer{})
}

// Snowflake is not available for this report type.
func (c *assetViewsCompiler) Snowflake(ctx context.Context, req Request) (string, error) {
	return "", ErrUnsupportedDialect
}

func (c *assetViewsCompiler) build(ctx context.Context, req Request, r dialect.Renderer) (string, error) {
	def := req.Definition
	calcs := visibility.New(def, req.Session, c.deps.Hydra)

	users, err := calcs.Users(ctx, req.CheckVisibility)
	if err != nil {
		return "", err
	}
	branches, err := calcs.Branches(ctx)
	if err != nil {
		return "", err
	}
	assets, err := calcs.Assets(ctx)
	if err != nil {
		return "", err
	}

	trans, err := c.loadTranslations(ctx, req, assetViewsLabelKeys)
	if err != nil {
		return "", err
	}
	extras, err := c.resolveExtras(ctx, def)
	if err != nil {
		return "", err
	}

	bc := newBuildContext(ctx, req, r, c.typ, &c.deps, trans, extras)
	bc.userID = "av.user_id"

	bc.frag.EnsureJoin(joinAsset, func() string {
		return "JOIN asset a ON a.asset_id = av.asset_id"
	})

	bc.frag.Where(idPredicate("av.user_id", users))
	bc.frag.Where(idPredicate("av.asset_id", assets))
	if !branches.Unrestricted() {
		ensureUserBranchJoin(bc)
		bc.frag.Where(idPredicate("ub.branch_id", branches))
	}
	if def.Users != nil && def.Users.HideDeactivated {
		ensureUserJoin(bc)
		bc.frag.Where("cu.deactivated = 0")
	}
	if def.Users != nil && def.Users.ShowOnlyLearners {
		ensureUserJoin(bc)
		bc.frag.Where("cu.level = 'user'")
	}

	table := merge(userFieldHandlers(), assetFieldHandlers())
	if err := c.runFieldLoop(bc, table); err != nil {
		return "", err
	}
	return bc.frag.SQL("asset_view av", c.orderBy(bc, catalog.FieldUserID), c.rowLimit(req)), nil
}

// assetFieldHandlers aggregates the view log per user and asset, so the
// per-row columns all land in GROUP BY while the access stats aggregate.
func assetFieldHandlers() handlerTable {
	return handlerTable{
		catalog.FieldAssetName: func(b *buildContext) error {
			b.sel(catalog.FieldAssetName, "a.name")
			return nil
		},
		catalog.FieldAssetChannels: func(b *buildContext) error {
			b.frag.EnsureJoin(joinAssetChannels, func() string {
				return "LEFT JOIN asset_channel ac ON ac.asset_id = a.asset_id" +
					" LEFT JOIN channel ch ON ch.channel_id = ac.channel_id"
			})
			b.selAgg(catalog.FieldAssetChannels, b.r.ArraySort("array_agg(DISTINCT ch.name)"))
			return nil
		},
		catalog.FieldAssetPublishedBy: func(b *buildContext) error {
			b.frag.EnsureJoin(joinAssetPublisher, func() string {
				return "LEFT JOIN core_user pub ON pub.user_id = a.published_by"
			})
			b.sel(catalog.FieldAssetPublishedBy, "concat(pub.firstname, ' ', pub.lastname)")
			return nil
		},
		catalog.FieldAssetPublishedOn: func(b *buildContext) error {
			b.sel(catalog.FieldAssetPublishedOn, b.r.FormatTimestamp("a.published_on"))
			return nil
		},
		catalog.FieldAssetType: func(b *buildContext) error {
			b.sel(catalog.FieldAssetType,
				"CASE a.asset_type"+
					" WHEN 'video' THEN "+b.caseLabel("report.label.asset.type.video", "Video")+
					" WHEN 'document' THEN "+b.caseLabel("report.label.asset.type.document", "Document")+
					" WHEN 'image' THEN "+b.caseLabel("report.label.asset.type.image", "Image")+
					" WHEN 'link' THEN "+b.caseLabel("report.label.asset.type.link", "Link")+
					" ELSE a.asset_type END")
			return nil
		},
		catalog.FieldAssetFirstAccess: func(b *buildContext) error {
			b.selAgg(catalog.FieldAssetFirstAccess, b.r.FormatTimestamp("MIN(av.viewed_at)"))
			return nil
		},
		catalog.FieldAssetLastAccess: func(b *buildContext) error {
			b.selAgg(catalog.FieldAssetLastAccess, b.r.FormatTimestamp("MAX(av.viewed_at)"))
			return nil
		},
		catalog.FieldAssetNumberViews: func(b *buildContext) error {
			b.selAgg(catalog.FieldAssetNumberViews, "CAST(COUNT(*) AS VARCHAR)")
			return nil
		},
		catalog.FieldAssetAverageRating: func(b *buildContext) error {
			b.frag.EnsureJoin(joinAssetRatings, func() string {
				return "LEFT JOIN asset_rating ar ON ar.asset_id = a.asset_id"
			})
			b.selAgg(catalog.FieldAssetAverageRating, "CAST(ROUND(AVG(ar.rating), 1) AS VARCHAR)")
			return nil
		},
	}
}
