package tools

import (
	"context"
	"errors"

	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/store"
)

type userInfoRequest struct {
	// The user comes from the identity context.
}

type userInfoResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullNameEn string `json:"full_name_en"`
	FullNameHe string `json:"full_name_he"`
	Language   string `json:"language"`
}

func (pt *PharmacyTools) userInfo(ctx context.Context, req userInfoRequest) (userInfoResponse, error) {
	userID := identity.FromContext(ctx).UserID()
	u, err := pt.store.UserByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return userInfoResponse{}, &ToolError{errors.New("no record for the signed-in user")}
		}
		return userInfoResponse{}, err
	}
	return userInfoResponse{
		ID:         u.ID,
		Username:   u.Username,
		FullNameEn: u.FullNameEn,
		FullNameHe: u.FullNameHe,
		Language:   u.Language,
	}, nil
}

func (pt *PharmacyTools) userInfoDef() ToolDefinition {
	return &toolDefinition[userInfoRequest, userInfoResponse]{
		name:        "get_user_info",
		description: "Get the profile of the currently signed-in user",
		needsAuth:   true,
		proc:        pt.userInfo,
	}
}
