package sthree

import (
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/oneconcern/monorel/pkg/errors"
	"github.com/oneconcern/monorel/pkg/storage/status"
)

func isNotExists(err error) bool {
	return errors.Is(err, status.ErrNotExists)
}

func apiErrors(resp minio.ErrorResponse, err error) error {
	// handle S3 API errors
	// see: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
	switch resp.StatusCode {
	case http.StatusBadRequest:
		if resp.Code == "InvalidBucketName" {
			return status.ErrInvalidResource.Wrap(err)
		}
		return status.ErrStorageAPI.Wrap(err)
	case http.StatusUnauthorized:
		return status.ErrUnauthorized.Wrap(err)
	case http.StatusForbidden:
		return status.ErrForbidden.Wrap(err)
	case http.StatusNotFound:
		return status.ErrNotExists.Wrap(err)
	case http.StatusPreconditionFailed, http.StatusConflict:
		return status.ErrExists.Wrap(err)
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}

func toSentinelErrors(err error) error {
	// return sentinel errors defined by the status package
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		switch resp.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return status.ErrNotExists.Wrap(err)
		}
		return err
	}
	return apiErrors(resp, err)
}
