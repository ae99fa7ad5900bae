package proposal

import "github.com/futig/proposal-backend/internal/entity"

func ToGenerateResponse(d *entity.ProposalDraft, includeMetadata bool) *entity.GenerateProposalResponse {
	resp := &entity.GenerateProposalResponse{
		Proposal:  d.Content,
		Format:    d.Format,
		Version:   d.Version,
		SessionID: d.SessionID,
	}
	if includeMetadata {
		resp.Metadata = &entity.ProposalMetadata{
			Sources:  d.Sources,
			Provider: d.Provider,
			Digest:   d.Digest,
		}
	}
	return resp
}

func ToVersionDTOs(drafts []*entity.ProposalDraft) []entity.ProposalVersionDTO {
	out := make([]entity.ProposalVersionDTO, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, entity.ProposalVersionDTO{
			Version:   d.Version,
			Format:    d.Format,
			Provider:  d.Provider,
			Digest:    d.Digest,
			CreatedAt: d.CreatedAt,
		})
	}
	return out
}
